// Package ui implements an interactive board client using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [BoardPickerView] : Browse, create, rename and delete boards
//  2. [BoardView] : Lists side by side as columns of cards
//  3. [CardDetailView] : A card's description rendered as markdown with glamour
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// It never owns board state: every frame is drawn from a snapshot of the session store, and a store subscription
// turns each change (local, optimistic or remote) into a redraw.
//
// # Dragging
//
// Space picks up the focused card and m picks up the focused list. While something is held, h/l hover the
// neighbouring list and j/k hover the neighbouring card, so the board previews the new order as it moves.
// Enter drops and saves, esc abandons the drag.
//
// Keyboard navigation uses vim-style bindings (h/j/k/l, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
