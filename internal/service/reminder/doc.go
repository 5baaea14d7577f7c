// Package reminder implements scheduled outbound call reminders.
//
// A reminder moves pending -> calling -> {completed, failed} with retries
// back to pending, or pending -> cancelled. The claim (pending -> calling)
// is an optimistic conditional UPDATE so that concurrent dispatcher cycles
// place at most one active call per reminder.
package reminder
