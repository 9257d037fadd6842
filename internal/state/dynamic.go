package state

import "github.com/roach88/flowdoc/internal/errs"

// DynamicResponseType enumerates the graph mutations a running job may request.
//
//   - Replace: same uuid, index+1, parents carried over unchanged.
//   - Detour: new uuids inserted between the job and its existing children.
//   - Addition: new uuids appended without altering existing children.
type DynamicResponseType string

const (
	DynamicReplace  DynamicResponseType = "replace"
	DynamicDetour   DynamicResponseType = "detour"
	DynamicAddition DynamicResponseType = "addition"
)

// ParseDynamicResponseType validates s as a DynamicResponseType.
func ParseDynamicResponseType(s string) (DynamicResponseType, error) {
	switch t := DynamicResponseType(s); t {
	case DynamicReplace, DynamicDetour, DynamicAddition:
		return t, nil
	default:
		return "", errs.Validation("state.parse_dynamic_response", "unknown dynamic response type %q", s)
	}
}

// String returns the stored value.
func (t DynamicResponseType) String() string { return string(t) }
