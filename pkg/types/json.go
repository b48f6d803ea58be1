package types

import "github.com/bytedance/sonic"

// JSON is the codec for the tree artifact and example payloads. Keys are
// sorted and numbers keep their literal text so re-serialization is stable.
var JSON = sonic.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()
