// Package common provides helpers shared by the operation packages:
// argument parsing with relative-time support, caller resolution, tagged
// JSON results and the instrumented handler wrapper.
package common
