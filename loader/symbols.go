package loader

import (
	"reflect"

	"github.com/leeforge/bot/extension"
	"github.com/traefik/yaegi/interp"
)

// Symbols exposes the extension package to interpreted entry points, in
// the layout yaegi extract generates.
var Symbols = interp.Exports{
	"github.com/leeforge/bot/extension/extension": {
		// function, constant and variable definitions
		"EmptyConfig":        reflect.ValueOf(extension.EmptyConfig),
		"ErrNoReplier":       reflect.ValueOf(&extension.ErrNoReplier).Elem(),
		"EventDebug":         reflect.ValueOf(extension.EventDebug),
		"EventError":         reflect.ValueOf(extension.EventError),
		"EventMessage":       reflect.ValueOf(extension.EventMessage),
		"EventReady":         reflect.ValueOf(extension.EventReady),
		"EventTenantJoin":    reflect.ValueOf(extension.EventTenantJoin),
		"EventWarn":          reflect.ValueOf(extension.EventWarn),
		"FactorySymbol":      reflect.ValueOf(extension.FactorySymbol),
		"NewModuleConfig":    reflect.ValueOf(extension.NewModuleConfig),
		"NewServiceRegistry": reflect.ValueOf(extension.NewServiceRegistry),
		"ServiceKey":         reflect.ValueOf(extension.ServiceKey),

		// type definitions
		"Base":            reflect.ValueOf((*extension.Base)(nil)),
		"Command":         reflect.ValueOf((*extension.Command)(nil)),
		"CommandHandler":  reflect.ValueOf((*extension.CommandHandler)(nil)),
		"Descriptor":      reflect.ValueOf((*extension.Descriptor)(nil)),
		"Event":           reflect.ValueOf((*extension.Event)(nil)),
		"EventBinding":    reflect.ValueOf((*extension.EventBinding)(nil)),
		"EventHandler":    reflect.ValueOf((*extension.EventHandler)(nil)),
		"Hooks":           reflect.ValueOf((*extension.Hooks)(nil)),
		"Invocation":      reflect.ValueOf((*extension.Invocation)(nil)),
		"Message":         reflect.ValueOf((*extension.Message)(nil)),
		"ModuleConfig":    reflect.ValueOf((*extension.ModuleConfig)(nil)),
		"PermissionFunc":  reflect.ValueOf((*extension.PermissionFunc)(nil)),
		"Ready":           reflect.ValueOf((*extension.Ready)(nil)),
		"ServiceRegistry": reflect.ValueOf((*extension.ServiceRegistry)(nil)),
	},
}
