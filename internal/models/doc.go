// Package models defines the client-side data model for the annihilator vocal separation client.
//
// The package contains three groups of types:
//
// 1. Session state owned by the flow controller
//   - [UploadSession] : one file's journey from selection to result
//   - [AudioFile] : the single selected input file
//   - [State] : the derived Idle/Uploading/Processing/Completed/Failed lifecycle state
//
// 2. Wire types decoded from the processing stream
//   - [ProgressEvent] : tagged union of progress, result, and error events
//
// 3. Persisted preferences
//   - [Theme] : dark or light, stored under [ThemeKey]
//   - [Preference] : a raw key/value row of the preference store
//
// The zero value of [UploadSession] is the Idle default; resetting a session means replacing it with a zero value.
package models
