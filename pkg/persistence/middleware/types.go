// Package middleware decorates program stores.
package middleware

import "github.com/aretw0/botlink/pkg/ports"

// Middleware allows wrapping a ProgramStore to add behavior.
type Middleware func(ports.ProgramStore) ports.ProgramStore
