package app

// Status is a point-in-time view of the capture loop for observers.
type Status struct {
	Running     bool `json:"running"`
	Enabled     bool `json:"enabled"`
	Smiling     bool `json:"smiling"`
	Faces       int  `json:"faces"`
	Transitions int  `json:"transitions"`
	// LastTransition is in monotonic seconds since the session started.
	LastTransition float64 `json:"last_transition"`
	Frames         int64   `json:"frames"`

	PendingCaptures   int   `json:"pending_captures"`
	BatchSize         int   `json:"batch_size"`
	PendingUploads    int   `json:"pending_uploads"`
	UploadsCompleted  int64 `json:"uploads_completed"`
	UploadsFailed     int64 `json:"uploads_failed"`
	NotificationsSent int64 `json:"notifications_sent"`
	NotificationsLost int64 `json:"notifications_dropped"`
	QueuedNotices     int   `json:"queued_notifications"`

	LatestImage string `json:"latest_image"`
	LastCapture string `json:"last_capture,omitempty"`
}

// Status returns the current status snapshot.
func (a *App) Status() Status {
	a.mu.RLock()
	s := a.status
	a.mu.RUnlock()

	s.PendingUploads = a.worker.Pending()
	s.UploadsCompleted = a.worker.Completed()
	s.UploadsFailed = a.worker.Failed()
	s.NotificationsSent = a.sender.Sent()
	s.NotificationsLost = a.sender.Dropped()
	s.QueuedNotices = a.queue.Len()
	return s
}
