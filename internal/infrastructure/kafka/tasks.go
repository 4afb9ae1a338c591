package kafka

// Task names understood by the worker processes.
const (
	TaskStartPostProcess = "funnel.start_post_process"
	TaskMetaViewContent  = "meta.view_content"
	TaskMetaPurchase     = "meta.purchase"
	TaskGatewayWebhook   = "gateway.process_webhook"
	TaskGatewayGenerate  = "gateway.generate_pix"
	TaskReconcileBatch   = "gateway.reconcile_batch"
	TaskDashboardEvent   = "dashboard.event"
)

// StartPostProcessArgs is the heavy tail of /start: tracking decode, device
// parsing, BotUser enrichment, ViewContent dispatch.
type StartPostProcessArgs struct {
	BotID       uint   `json:"bot_id"`
	ChatID      int64  `json:"chat_id"`
	DeepLink    string `json:"deep_link,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// MetaEventArgs carries everything the Meta Pixel submission worker needs.
// When TestEventCode is set the event only shows in Meta's test-events view,
// never in production reports.
type MetaEventArgs struct {
	PixelID       string         `json:"pixel_id"`
	AccessToken   string         `json:"access_token"`
	EventName     string         `json:"event_name"`
	EventID       string         `json:"event_id"`
	EventTime     int64          `json:"event_time"`
	TestEventCode string         `json:"test_event_code,omitempty"`
	UserData      map[string]any `json:"user_data"`
	CustomData    map[string]any `json:"custom_data"`
}

// WebhookProcessArgs replays a gateway webhook through the worker pool. The
// HTTP endpoint only dedups and enqueues.
type WebhookProcessArgs struct {
	GatewayKind string `json:"gateway_kind"`
	DedupKey    string `json:"dedup_key"`
	Payload     string `json:"payload"`
	// SkipPendingEnqueue is set by the late-replay worker to avoid
	// re-inserting the pending-match row it is draining.
	SkipPendingEnqueue bool `json:"skip_pending_enqueue,omitempty"`
}

// DashboardEventArgs fans a runtime event out to connected dashboards.
type DashboardEventArgs struct {
	TenantID uint           `json:"tenant_id"`
	Event    string         `json:"event"`
	Data     map[string]any `json:"data"`
}
