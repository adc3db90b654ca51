package model

type AppKind string

type StoreKind string

const (
	AppName = "inventory"

	AppKindAgent  AppKind = "agent"
	AppKindServer AppKind = "server"
	AppKindClient AppKind = "client"

	StoreKindSQLite StoreKind = "sqlite"
	StoreKindMemory StoreKind = "memory"

	LogLevelInfo  = 0
	LogLevelDebug = 1
	LogLevelTrace = 2

	// DefaultPlaceholder is the value of a collected field whose probe failed.
	DefaultPlaceholder = "unknown"

	// DefaultNotApplicable is the value of a collected field which has no meaning on the platform.
	DefaultNotApplicable = "not applicable"
)

// AppKinds returns the supported app kinds
func AppKinds() []AppKind { return []AppKind{AppKindAgent, AppKindServer, AppKindClient} }

// StoreKinds returns the supported asset store kinds
func StoreKinds() []StoreKind { return []StoreKind{StoreKindSQLite, StoreKindMemory} }
