package models

// Methods accepted for queued requests.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// Status change events delivered to listeners.
const (
	EventOnline  = "online"
	EventOffline = "offline"
	EventQueued  = "queued"
	EventSynced  = "synced"
)

const (
	// DefaultDrainInterval — период фоновой синхронизации очереди в секундах
	DefaultDrainInterval = 30

	// DefaultProbeTimeout таймаут активной проверки связи в секундах
	DefaultProbeTimeout = 5

	// DefaultDebounceMs задержка автосохранения форм
	DefaultDebounceMs = 1000

	// DefaultMaxRetries предел учёта повторов для записи очереди
	DefaultMaxRetries = 6
)
