package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// JSONL record types.
const (
	RecordTypeHeader = "header" // Session metadata (first line)
	RecordTypeEvent  = "event"  // Individual event
	RecordTypeFooter = "footer" // Final state (last line)
)

// JSONLRecord is one line of a journal file.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields
	ID          string    `json:"id,omitempty"`
	BillID      string    `json:"bill_id,omitempty"`
	BillVersion int       `json:"bill_version,omitempty"`
	BillTitle   string    `json:"bill_title,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`

	// Event fields
	*Event `json:",omitempty"`

	// Footer fields. Failure is not named Error so it does not shadow Event.Error.
	Status    string    `json:"status,omitempty"`
	Result    string    `json:"result,omitempty"`
	Failure   string    `json:"failure,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore keeps one JSONL file per session in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file a session is stored in.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save writes the whole session, replacing any previous file.
func (s *FileStore) Save(sess *Session) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	sess.mu.Lock()
	header := JSONLRecord{
		RecordType:  RecordTypeHeader,
		ID:          sess.ID,
		BillID:      sess.BillID,
		BillVersion: sess.BillVersion,
		BillTitle:   sess.BillTitle,
		CreatedAt:   sess.CreatedAt,
	}
	events := append([]Event(nil), sess.Events...)
	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		Failure:    sess.Error,
		UpdatedAt:  sess.UpdatedAt,
	}
	sess.mu.Unlock()

	path := s.Path(header.ID)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}

	w := bufio.NewWriter(f)
	err = writeLine(w, header)
	for i := 0; err == nil && i < len(events); i++ {
		err = writeLine(w, JSONLRecord{RecordType: RecordTypeEvent, Event: &events[i]})
	}
	if err == nil {
		err = writeLine(w, footer)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeLine(w io.Writer, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Load reads a session by ID.
func (s *FileStore) Load(id string) (*Session, error) {
	return LoadFile(s.Path(id))
}

// LoadFile reads a journal file.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a JSONL journal. Lines have no length limit.
func Read(r io.Reader) (*Session, error) {
	sess := &Session{Events: []Event{}}
	reader := bufio.NewReader(r)
	sawHeader := false

	for n := 1; ; n++ {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			isHeader, perr := parseLine(trimmed, sess)
			if perr != nil {
				return nil, fmt.Errorf("line %d: %w", n, perr)
			}
			sawHeader = sawHeader || isHeader
		}
		if err == io.EOF {
			break
		}
	}

	if !sawHeader {
		return nil, fmt.Errorf("not a session journal: no header record")
	}
	if len(sess.Events) > 0 {
		sess.seqCounter = sess.Events[len(sess.Events)-1].SeqID
	}
	return sess, nil
}

func parseLine(line []byte, sess *Session) (bool, error) {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return false, fmt.Errorf("failed to parse JSONL line: %w", err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		sess.ID = record.ID
		sess.BillID = record.BillID
		sess.BillVersion = record.BillVersion
		sess.BillTitle = record.BillTitle
		sess.CreatedAt = record.CreatedAt
		return true, nil

	case RecordTypeEvent:
		if record.Event != nil {
			sess.Events = append(sess.Events, *record.Event)
		}

	case RecordTypeFooter:
		sess.Status = record.Status
		sess.Result = record.Result
		sess.Error = record.Failure
		sess.UpdatedAt = record.UpdatedAt
	}
	return false, nil
}
