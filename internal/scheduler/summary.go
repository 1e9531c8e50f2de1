package scheduler

// Job summaries are returned to the manual trigger endpoints as-is, so
// partial failures stay visible to the caller alongside what did succeed.

type CreatedCycle struct {
	SubscriptionID string `json:"subscriptionId"`
	CycleNumber    int    `json:"cycleNumber"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
}

type CycleCreationSummary struct {
	Success       bool           `json:"success"`
	TotalChecked  int            `json:"totalChecked"`
	CyclesCreated int            `json:"cyclesCreated"`
	Errors        []string       `json:"errors"`
	Created       []CreatedCycle `json:"created"`
}

type CancelledCycle struct {
	CycleID         string `json:"cycleId"`
	SubscriptionID  string `json:"subscriptionId"`
	CycleNumber     int    `json:"cycleNumber"`
	InvoiceDeadline string `json:"invoiceDeadline"`
}

type AutoCancellationSummary struct {
	Success           bool             `json:"success"`
	TotalOverdue      int              `json:"totalOverdue"`
	CancelledCount    int              `json:"cancelledCount"`
	NotificationsSent int              `json:"notificationsSent"`
	Errors            []string         `json:"errors"`
	Cancelled         []CancelledCycle `json:"cancelled"`
}

type SubscriptionExpirySummary struct {
	Success      bool     `json:"success"`
	TotalChecked int      `json:"totalChecked"`
	ExpiredCount int      `json:"expiredCount"`
	Errors       []string `json:"errors"`
}
