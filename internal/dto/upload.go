package dto

// Upload kinds accepted by /upload.
const (
	KindGPS   = "gps"
	KindImage = "image"
)

// Upload is a validated /upload request: either *GpsUpload or *ImageUpload.
type Upload interface {
	Kind() string
	Session() string
	Time() int64
}

// GpsUpload carries one GPS fix for a session.
type GpsUpload struct {
	SessionID string
	Timestamp int64
	Latitude  float64
	Longitude float64
}

func (u *GpsUpload) Kind() string    { return KindGPS }
func (u *GpsUpload) Session() string { return u.SessionID }
func (u *GpsUpload) Time() int64     { return u.Timestamp }

// ImageUpload carries one encoded camera frame for a session.
type ImageUpload struct {
	SessionID string
	Timestamp int64
	Image     []byte
}

func (u *ImageUpload) Kind() string    { return KindImage }
func (u *ImageUpload) Session() string { return u.SessionID }
func (u *ImageUpload) Time() int64     { return u.Timestamp }
