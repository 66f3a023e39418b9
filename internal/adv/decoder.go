package adv

// decoderState tracks the AD structure currently being assembled.
type decoderState struct {
	expectedLength int // declared length, type byte included
	consumed       int // bytes of the current record seen after the length byte
	recordType     byte
	buffer         []byte
	inRecord       bool
}

func (s *decoderState) reset() {
	*s = decoderState{}
}

// Decode splits a raw advertising payload into records.
//
// It never fails. A record is emitted only once all of its declared bytes
// have been read; a partially started record at the end of the input is
// dropped. A zero length byte terminates the payload (the rest is padding).
func Decode(raw []byte) []Record {
	var (
		records []Record
		state   decoderState
	)

	for _, b := range raw {
		if !state.inRecord {
			if b == 0 {
				break
			}
			state.expectedLength = int(b)
			state.consumed = 0
			state.inRecord = true
			continue
		}

		if state.consumed == 0 {
			state.recordType = b
			state.buffer = make([]byte, 0, state.expectedLength-1)
		} else {
			state.buffer = append(state.buffer, b)
		}
		state.consumed++

		if state.consumed == state.expectedLength {
			records = append(records, Record{Type: state.recordType, Data: state.buffer})
			state.reset()
		}
	}

	return records
}

// Encode is the inverse of Decode. Records whose data would overflow the
// single length byte are skipped.
func Encode(records []Record) []byte {
	size := 0
	for _, r := range records {
		size += 2 + len(r.Data)
	}

	out := make([]byte, 0, size)
	for _, r := range records {
		if len(r.Data) > 0xFE {
			continue
		}
		out = append(out, byte(len(r.Data)+1), r.Type)
		out = append(out, r.Data...)
	}
	return out
}
