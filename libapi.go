package botcore

import (
	"context"

	runtimepkg "github.com/drblury/botcore/internal/runtime"
	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/dispatch"
	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/gateway"
	"github.com/drblury/botcore/internal/runtime/guards"
	loggingpkg "github.com/drblury/botcore/internal/runtime/logging"
	"github.com/drblury/botcore/internal/runtime/state"
	transportpkg "github.com/drblury/botcore/internal/runtime/transport"
	newtransport "github.com/drblury/botcore/transport"
)

type (
	Config            = configpkg.Config
	StateConfig       = configpkg.StateConfig
	MaintenanceConfig = configpkg.MaintenanceConfig
	LogsConfig        = configpkg.LogsConfig
	LogCategory       = configpkg.Category

	Runtime      = runtimepkg.Runtime
	Dependencies = runtimepkg.Dependencies
	Module       = runtimepkg.Module
	Connector    = runtimepkg.Connector
	Status       = runtimepkg.Status

	Envelope    = event.Envelope
	Actor       = event.Actor
	Channel     = event.Channel
	ChannelKind = event.ChannelKind

	Guard             = guards.Guard
	GuardCheck        = guards.CheckFunc
	Verdict           = guards.Verdict
	MaintenanceReader = guards.MaintenanceReader
	Bypass            = guards.Bypass

	HandlerFunc       = dispatch.HandlerFunc
	Outcome           = dispatch.Outcome
	Hooks             = dispatch.Hooks
	VetoContext       = dispatch.VetoContext
	HandlerContext    = dispatch.HandlerContext
	CompletionContext = dispatch.CompletionContext

	Store       = state.Store
	MemoryStore = state.MemoryStore
	SQLiteStore = state.SQLiteStore
	RedisStore  = state.RedisStore

	Logger        = loggingpkg.Logger
	LoggerOptions = loggingpkg.Options
	Level         = loggingpkg.Level
	GuildEvent    = loggingpkg.GuildEvent
	ChannelSender = loggingpkg.ChannelSender
	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	GatewayClient  = gateway.Client
	GatewayOptions = gateway.Options
	PublishFunc    = gateway.PublishFunc

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	Transport         = transportpkg.Transport
	TransportFactory  = transportpkg.Factory
	Capabilities      = transportpkg.Capabilities
	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry

	FatalError            = errspkg.FatalError
	StorageError          = errspkg.StorageError
	GuardFaultError       = errspkg.GuardFaultError
	HandlerFaultError     = errspkg.HandlerFaultError
	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	NewRuntime     = runtimepkg.NewRuntime
	Lifecycle      = runtimepkg.Lifecycle
	SimpleCommand  = runtimepkg.SimpleCommand
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewEnvelope = event.New
	NewEventID  = event.NewID

	NewGuard    = guards.New
	NewChain    = guards.NewChain
	Permit      = guards.Permit
	Veto        = guards.Veto
	NotBot      = guards.NotBot
	Maintenance = guards.Maintenance
	GuildScope  = guards.GuildScope

	OpenStore      = state.Open
	OpenSQLite     = state.OpenSQLite
	OpenRedis      = state.OpenRedis
	NewRedisStore  = state.NewRedisStore
	NewMemoryStore = state.NewMemoryStore

	NewLogger                = loggingpkg.NewLogger
	NewServiceLogger         = loggingpkg.NewServiceLogger
	NewSlogServiceLogger     = loggingpkg.NewSlogServiceLogger
	NopServiceLogger         = loggingpkg.NopServiceLogger
	NewWatermillAdapter      = loggingpkg.NewWatermillAdapter
	ConstantCase             = loggingpkg.ConstantCase
	NewGateway               = gateway.New
	LoggingHooks             = dispatch.LoggingHooks
	NewTransportFactory      = transportpkg.NewFactory
	DefaultTransports        = transportpkg.DefaultFactory
	NewTransportRegistry     = newtransport.NewRegistry
	GetCapabilities          = newtransport.GetCapabilities
	NewFatalError            = errspkg.NewFatalError
	IsFatal                  = errspkg.IsFatal
	NewConfigValidationError = errspkg.NewConfigValidationError

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware
)

var (
	ErrConfigRequired      = errspkg.ErrConfigRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrStoreRequired       = errspkg.ErrStoreRequired
	ErrTokenRequired       = errspkg.ErrTokenRequired
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrHandlerNameRequired = errspkg.ErrHandlerNameRequired
	ErrEventTypeRequired   = errspkg.ErrEventTypeRequired
	ErrGuardNameRequired   = errspkg.ErrGuardNameRequired
	ErrGuardCheckRequired  = errspkg.ErrGuardCheckRequired
	ErrUnknownStateBackend = errspkg.ErrUnknownStateBackend
	ErrChannelNotFound     = errspkg.ErrChannelNotFound
	ErrChannelNotText      = errspkg.ErrChannelNotText
	ErrGatewayClosed       = errspkg.ErrGatewayClosed
	ErrInvalidSession      = errspkg.ErrInvalidSession
	ErrBusClosed           = errspkg.ErrBusClosed
	ErrAlreadyStarted      = errspkg.ErrAlreadyStarted
)

// Event types emitted by the gateway.
const (
	TypeInteractionCreate = event.TypeInteractionCreate
	TypeMessageCreate     = event.TypeMessageCreate
	TypeGuildCreate       = event.TypeGuildCreate
	TypeGuildDelete       = event.TypeGuildDelete
	TypeGuildMemberAdd    = event.TypeGuildMemberAdd
	TypeReady             = event.TypeReady

	SubtypeSimpleCommand = event.SubtypeSimpleCommand
)

// Dispatch outcomes.
const (
	OutcomeNoHandlers = dispatch.OutcomeNoHandlers
	OutcomeVetoed     = dispatch.OutcomeVetoed
	OutcomeCompleted  = dispatch.OutcomeCompleted
)

// Keys seeded into the state store on startup.
const (
	KeyMaintenance     = state.KeyMaintenance
	KeyLastMaintenance = state.KeyLastMaintenance
	KeyLastStartup     = state.KeyLastStartup
)

const (
	LevelDebug = loggingpkg.LevelDebug
	LevelInfo  = loggingpkg.LevelInfo
	LevelWarn  = loggingpkg.LevelWarn
	LevelError = loggingpkg.LevelError

	GuildNew     = loggingpkg.GuildNew
	GuildDelete  = loggingpkg.GuildDelete
	GuildRecover = loggingpkg.GuildRecover
)

// GetState reads key from store and decodes its JSON value into T.
func GetState[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	return state.GetAs[T](ctx, store, key)
}
