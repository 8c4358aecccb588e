// PotholeFilter narrows the persisted pothole list.
package dto

type PotholeFilter struct {
	SessionID string
	Limit     int
	Offset    int
}
