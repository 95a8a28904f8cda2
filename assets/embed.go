package assets

import "embed"

// FS carries the canned message pools and the parser vocabulary.
//
//go:embed messages.json
var FS embed.FS

// MessagesFile is the name of the content file inside FS.
const MessagesFile = "messages.json"
