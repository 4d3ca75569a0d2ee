package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
)

// Reader serves one immutable segment. Dictionary and stored fields are
// held in memory; postings are read from disk on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	fields   map[string][]DictEntry
	lexicons map[string][]string
	stored   map[uint64]map[string]string
	docIDs   []uint64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("loading segment %s: %w", path, err)
	}
	r.filePath = path
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:        magic,
		Version:      binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:    binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:     binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset:   int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:     int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:     int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		StoredOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		StoredSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.StoredOffset+header.StoredSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	storedBytes := make([]byte, header.StoredSize)
	if _, err := f.ReadAt(storedBytes, header.StoredOffset); err != nil {
		return nil, fmt.Errorf("reading stored fields: %w", err)
	}
	if crc32.ChecksumIEEE(storedBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("stored fields checksum mismatch")
	}
	var docs []index.StoredDoc
	if err := json.Unmarshal(storedBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing stored fields: %w", err)
	}

	r := &Reader{
		file:     f,
		header:   header,
		fields:   make(map[string][]DictEntry),
		lexicons: make(map[string][]string),
		stored:   make(map[uint64]map[string]string, len(docs)),
		docIDs:   make([]uint64, 0, len(docs)),
	}
	for _, e := range dict {
		r.fields[e.Field] = append(r.fields[e.Field], e)
		r.lexicons[e.Field] = append(r.lexicons[e.Field], e.Term)
	}
	for _, d := range docs {
		r.stored[d.DocID] = d.Fields
		r.docIDs = append(r.docIDs, d.DocID)
	}
	sort.Slice(r.docIDs, func(i, j int) bool { return r.docIDs[i] < r.docIDs[j] })
	return r, nil
}

// Lexicon returns the sorted term dictionary of field, nil if the segment
// has no terms for it.
func (r *Reader) Lexicon(field string) (matcher.Lexicon, error) {
	terms, ok := r.lexicons[field]
	if !ok {
		return nil, nil
	}
	return index.NewSliceLexicon(terms), nil
}

// PostingList reads the postings of field:term from disk.
func (r *Reader) PostingList(field, term string) (matcher.PostingList, error) {
	postings, err := r.Search(field, term)
	if err != nil || postings == nil {
		return nil, err
	}
	return index.NewIterator(postings), nil
}

func (r *Reader) Search(field, term string) (index.PostingList, error) {
	entries := r.fields[field]
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].Term >= term
	})
	if idx >= len(entries) || entries[idx].Term != term {
		return nil, nil
	}
	entry := entries[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

// Fetch returns the stored fields of docID.
func (r *Reader) Fetch(docID uint64) (map[string]string, error) {
	return r.stored[docID], nil
}

func (r *Reader) DocIDs() []uint64 { return r.docIDs }

func (r *Reader) Terms() int {
	return int(r.header.TermCount)
}

func (r *Reader) DocCount() int {
	return len(r.docIDs)
}

// MaxDocID returns the highest document id in the segment.
func (r *Reader) MaxDocID() uint64 {
	if len(r.docIDs) == 0 {
		return 0
	}
	return r.docIDs[len(r.docIDs)-1]
}

func (r *Reader) Path() string { return r.filePath }

func (r *Reader) Close() error {
	return r.file.Close()
}
