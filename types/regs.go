package types

// RegField describes one field of a register block.
type RegField struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Width  int    `json:"width"`
	Access string `json:"access"`
	Effect string `json:"effect,omitempty"`
}

// RegValue is the reply to a read, write or modify request.
type RegValue struct {
	Block string `json:"block"`
	Field string `json:"field"`
	Addr  uint64 `json:"addr"`
	Value uint32 `json:"value"`
}

// RegWrite is the payload of reg/<block>/<field>/control/write.
type RegWrite struct {
	Value uint32 `json:"value"`
}

// RegModify is the payload of reg/<block>/<field>/control/modify; the new
// value is (old &^ Clear) | Set.
type RegModify struct {
	Set   uint32 `json:"set"`
	Clear uint32 `json:"clear"`
}

// RegDump is the reply to reg/<block>/+/control/dump and the retained
// reg/<block>/info document (without Values).
type RegDump struct {
	Block  string     `json:"block"`
	Base   uint64     `json:"base"`
	Size   uint32     `json:"size"`
	Fields []RegField `json:"fields"`
	Values []RegValue `json:"values,omitempty"`
}
