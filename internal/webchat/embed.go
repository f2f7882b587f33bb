package webchat

import _ "embed"

// WidgetJS is the embeddable chat widget served at /chat/widget.js.
//
//go:embed widget.js
var WidgetJS []byte
