// Package preference_tools exposes the preference store as operations.
package preference_tools
