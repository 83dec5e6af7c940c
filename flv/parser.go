package flv

import (
	"bytes"
)

// Tag is one complete FLV tag recovered from a byte stream.
type Tag struct {
	Type      uint8
	Timestamp uint32
	Data      []byte
}

type parserStage uint8

const (
	stageFileHeader parserStage = iota
	stageSkip
	stageTagHeader
	stageTagBody
	stagePreviousTagSize
)

// Parser splits an FLV byte stream into tags. Input may be fed in arbitrary
// pieces; a tag whose body spans several pieces is accumulated until complete.
// A leading file header (and the previous-tag-size that follows it) is
// skipped; a stream that starts directly with a tag is accepted as well.
type Parser struct {
	stage   parserStage
	pending []byte
	skip    int
	header  TagHeader
}

func NewParser() *Parser {
	return &Parser{stage: stageFileHeader}
}

// Feed consumes p and returns every tag completed by it.
func (p *Parser) Feed(b []byte) ([]Tag, error) {
	p.pending = append(p.pending, b...)
	var tags []Tag

	for {
		switch p.stage {
		case stageFileHeader:
			if len(p.pending) < 3 {
				return tags, nil
			}
			if !bytes.Equal(p.pending[:3], signature) {
				p.stage = stageTagHeader
				continue
			}
			if len(p.pending) < HeaderSize {
				return tags, nil
			}
			_, dataOffset, err := ParseHeader(p.pending)
			if err != nil {
				return tags, err
			}
			p.skip = int(dataOffset) + PreviousTagSizeSize
			p.stage = stageSkip
		case stageSkip:
			if len(p.pending) < p.skip {
				return tags, nil
			}
			p.consume(p.skip)
			p.skip = 0
			p.stage = stageTagHeader
		case stageTagHeader:
			if len(p.pending) < TagHeaderSize {
				return tags, nil
			}
			h, err := ParseTagHeader(p.pending)
			if err != nil {
				return tags, err
			}
			p.header = h
			p.consume(TagHeaderSize)
			p.stage = stageTagBody
		case stageTagBody:
			size := int(p.header.DataSize)
			if len(p.pending) < size {
				return tags, nil
			}
			data := make([]byte, size)
			copy(data, p.pending[:size])
			p.consume(size)
			tags = append(tags, Tag{Type: p.header.Type, Timestamp: p.header.Timestamp, Data: data})
			p.stage = stagePreviousTagSize
		case stagePreviousTagSize:
			if len(p.pending) < PreviousTagSizeSize {
				return tags, nil
			}
			p.consume(PreviousTagSizeSize)
			p.stage = stageTagHeader
		}
	}
}

// Buffered returns the number of bytes held back waiting for more input.
func (p *Parser) Buffered() int {
	return len(p.pending)
}

func (p *Parser) consume(n int) {
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.pending = nil
	}
}
