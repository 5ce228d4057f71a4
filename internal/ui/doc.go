// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// Two models are provided:
//   - [Model] runs one generation, showing the current phase with a spinner and the poll budget as a progress bar,
//     then the final outcome ([GenerateView], [ResultView]).
//   - [HistoryModel] browses stored generations with a filterable list and a detail pane.
//
// Both implement bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the generation engine, so polling never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, o, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
