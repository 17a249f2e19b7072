// Package tasks drives one audio file through the separation service with real-time progress reporting.
//
// # Flow
//
// The [Controller] owns a single [models.UploadSession] and exposes typed operations over it:
//
//  1. [Controller.SelectFile] : replace the selected file and return to idle
//  2. [Controller.StartProcessing] : upload the file and consume the event stream until a result or error
//     - progress values below 50 keep the session uploading, 50 and above move it to processing
//     - a result token completes the session, an error message fails it
//     - a stream that closes or goes idle without either fails it with [shared.ErrStream]
//  3. [Controller.TogglePlayback] / [Controller.DownloadResult] : act on the processed file
//  4. [Controller.RemoveFile] : reset everything and abandon in-flight work
//
// Stream events pass through [Controller.ApplyEvent], which drops anything tagged with a session ID that is no longer current.
//
// # Simulated Progress
//
// Until the server reports real progress the [Simulator] advances the displayed value by one per interval.
// A guard timer stops it after a fixed budget. The first real progress event, any terminal event, or a reset cancels both timers.
// Simulated progress never reaches 100.
//
// # Progress Reporting
//
// Subscribers receive [ProgressUpdate] values over a channel. Sends use select with default so a slow reader never blocks the controller.
package tasks
