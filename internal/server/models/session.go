package models

import "time"

// Session is a persisted refresh token. Access tokens are stateless JWTs;
// refresh tokens are opaque strings stored server-side so they can be
// rotated and revoked.
type Session struct {
	UserUUID  string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
