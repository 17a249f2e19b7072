// Package services implements the HTTP client for the remote vocal separation API.
//
// # Processing
//
// [ProcessingService.Submit] posts the selected file as multipart form data
// (fields "file" and "filename") with "Accept: text/event-stream" and returns
// an [EventStream] over the response body. Request bodies are streamed from
// disk through an [io.Pipe], so large files are never buffered in memory.
//
// # Event Stream Framing
//
// The response is decoded incrementally by [EventDecoder]:
//   - lines are terminated by "\n" or "\r\n" and may be split across reads
//   - "data:" lines accumulate into the payload of the current record
//   - "event:" names the record; an "event: close" record ends the stream
//   - lines starting with ":" are comments
//   - a blank line dispatches the record
//
// Each non-empty payload is parsed into a [models.ProgressEvent].
//
// # Downloads
//
// [ProcessingService.DownloadURL] builds the download URL for a result token
// and [ProcessingService.Download] streams the processed file into a writer.
//
// # Error Handling
//
// Errors are wrapped with sentinels from the shared package:
//   - [shared.ErrConnection] : transport failure or non-2xx status before streaming
//   - [shared.ErrStream] : malformed payloads
//   - [shared.ErrResultNotFound] : download of an unknown token
//   - [shared.ErrAPIRequest] : any other failed download
package services
