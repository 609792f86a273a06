// Package security provides validation, sanitization, and limits for hookq.
package security
