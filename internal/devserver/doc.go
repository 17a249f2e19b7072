// Package devserver emulates the remote separation API for local development.
//
// It serves the two endpoints the client talks to:
//
//   - POST {processing_path} : accepts the multipart upload and streams progress milestones
//     (15, 30, 50, 80, 90) as server-sent events, then a result token and a close record
//   - GET {download_path} : returns the stored result for processed-filename/result-filename, 404 when unknown
//
// No separation happens: the uploaded bytes are stored as the vocals stem and expire after a TTL.
// An empty upload produces an error event so clients can exercise the failure path.
package devserver
