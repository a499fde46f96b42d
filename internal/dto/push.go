package dto

// VAPIDKeyResponse key for PushManager.subscribe
type VAPIDKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// PushKeys keys of a browser PushSubscription
type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth"   binding:"required"`
}

// SubscribeRequest matches PushSubscription.toJSON()
type SubscribeRequest struct {
	Endpoint string   `json:"endpoint" binding:"required,url"`
	Keys     PushKeys `json:"keys"     binding:"required"`
}

// UnsubscribeRequest remove one browser subscription
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// RunSummary outcome of one notification run
type RunSummary struct {
	RunID      string `json:"run_id"`
	Date       string `json:"date"`
	Schedules  int    `json:"schedules"`
	Recipients int    `json:"recipients"`
	Messages   int    `json:"messages"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Pruned     int    `json:"pruned"`
	Skipped    bool   `json:"skipped,omitempty"` // another instance holds the run lock
}
