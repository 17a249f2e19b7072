// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI drives one [tasks.Controller] through the vocal separation workflow:
//  1. [SelectView] : pick an audio file with the file picker
//  2. [SessionView] : start processing, watch the progress bar, then play or download the vocals
//  3. [HelpView] : the "how it works" overlay, reachable from any view with ?
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel subscribed to the controller, providing non-blocking status reporting during processing.
//
// The dark/light theme is loaded from and saved to a [ThemeStore] every time it is toggled with t.
package ui
