package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for the BadgerDB key scheme. Records are keyed by URI rather
// than by a synthetic node ID; the folder-membership index lets
// IndexRootContent scan by prefix without a full table walk (FolderCount
// and Stats do walk every file record).
const (
	prefixFile       = "f:"
	prefixIdxFolder  = "idx:folder:"
	folderCountKey   = "stat:foldercount"
)

// record is the on-disk representation of FileRecord.
type record struct {
	URI           string    `json:"uri"`
	FolderURN     string    `json:"folder_urn,omitempty"`
	IsFolder      bool      `json:"is_folder"`
	LastModified  time.Time `json:"last_modified"`
	ExtractorHash string    `json:"extractor_hash,omitempty"`
	Mimetype      string    `json:"mimetype,omitempty"`
}

func fileKey(uri string) []byte { return []byte(prefixFile + uri) }

// folderIdxKey indexes uri under its containing root so IndexRootContent can
// scan by prefix instead of walking the whole table.
func folderIdxKey(root, uri string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixIdxFolder, root, uri))
}

// BadgerStore implements Store using BadgerDB: a key-prefix-plus-
// secondary-index scheme over a flat URI-keyed file table.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) a BadgerDB-backed store at dbPath.
func Open(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) IndexRootContent(_ context.Context, root string) ([]FileRecord, error) {
	var out []FileRecord
	prefix := []byte(prefixIdxFolder + root + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			uri := key[len(prefix):] // URIs such as file:///x contain ':' themselves
			item, err := txn.Get(fileKey(uri))
			if err != nil {
				continue // index entry for a deleted record; skip
			}
			var rec record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				continue
			}
			out = append(out, toFileRecord(rec))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index root content %s: %w", root, err)
	}
	sortByURI(out)
	return out, nil
}

func (s *BadgerStore) FileMimetype(_ context.Context, uri string) (string, bool, error) {
	var mimetype string
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(uri))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			var rec record
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			mimetype = rec.Mimetype
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("file mimetype %s: %w", uri, err)
	}
	return mimetype, found, nil
}

func (s *BadgerStore) Exists(_ context.Context, uri string) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(fileKey(uri))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("file exists %s: %w", uri, err)
	}
	return exists, nil
}

// Stats reports file/folder counts and on-disk size via a counted prefix
// scan plus the engine's own size accounting.
type Stats struct {
	FileCount   int64
	FolderCount int64
	LSMBytes    int64
	VLogBytes   int64
}

func (s *BadgerStore) Stats(_ context.Context) (Stats, error) {
	var stats Stats
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				if rec.IsFolder {
					stats.FolderCount++
				} else {
					stats.FileCount++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	stats.LSMBytes, stats.VLogBytes = s.db.Size()
	return stats, nil
}

func (s *BadgerStore) FolderCount(_ context.Context) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				if rec.IsFolder {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("folder count: %w", err)
	}
	return count, nil
}

// Apply commits a batch of Statements atomically within one Badger
// transaction: collect every mutation, then a single Update call.
func (s *BadgerStore) Apply(_ context.Context, stmts []Statement) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, stmt := range stmts {
			if err := applyStatement(txn, stmt); err != nil {
				return fmt.Errorf("apply %v %s: %w", stmt.Kind, stmt.Path, err)
			}
		}
		return nil
	})
}

func applyStatement(txn *badger.Txn, stmt Statement) error {
	switch stmt.Kind {
	case StmtDeleteFile:
		return deleteFileInTxn(txn, stmt.Path)
	case StmtDeleteFolderContents:
		return deleteFolderContentsInTxn(txn, stmt.Path)
	case StmtMoveFile:
		return moveFileInTxn(txn, stmt.Path, stmt.DestPath)
	case StmtMoveFolderContents:
		return moveFolderContentsInTxn(txn, stmt.Path, stmt.DestPath)
	case StmtClearContent:
		return clearContentInTxn(txn, stmt.Path)
	case StmtFile:
		return putFileInTxn(txn, stmt, false)
	case StmtFolder:
		return putFileInTxn(txn, stmt, true)
	case StmtAttributesUpdate:
		return putFileInTxn(txn, stmt, false)
	default:
		return fmt.Errorf("unknown statement kind %v", stmt.Kind)
	}
}

func putFileInTxn(txn *badger.Txn, stmt Statement, isFolder bool) error {
	old, err := getRecordInTxn(txn, stmt.Path)
	if err == nil && old.FolderURN != "" {
		_ = txn.Delete(folderIdxKey(old.FolderURN, stmt.Path))
	}
	rec := record{
		URI:          stmt.Path,
		FolderURN:    stmt.GraphResource,
		IsFolder:     isFolder,
		LastModified: time.Now(),
		Mimetype:     "",
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(fileKey(stmt.Path), data); err != nil {
		return err
	}
	if rec.FolderURN != "" {
		return txn.Set(folderIdxKey(rec.FolderURN, stmt.Path), nil)
	}
	return nil
}

func deleteFileInTxn(txn *badger.Txn, path string) error {
	rec, err := getRecordInTxn(txn, path)
	if err == badger.ErrKeyNotFound {
		return nil // idempotent: deleting an already-absent record is a no-op
	}
	if err != nil {
		return err
	}
	if rec.FolderURN != "" {
		_ = txn.Delete(folderIdxKey(rec.FolderURN, path))
	}
	return txn.Delete(fileKey(path))
}

func deleteFolderContentsInTxn(txn *badger.Txn, dir string) error {
	prefix := []byte(prefixIdxFolder + dir + ":")
	var uris []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		uris = append(uris, key[len(prefix):])
	}
	it.Close()
	for _, uri := range uris {
		if err := deleteFileInTxn(txn, uri); err != nil {
			return err
		}
	}
	return nil
}

func moveFileInTxn(txn *badger.Txn, src, dst string) error {
	rec, err := getRecordInTxn(txn, src)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	if rec.FolderURN != "" {
		_ = txn.Delete(folderIdxKey(rec.FolderURN, src))
	}
	_ = txn.Delete(fileKey(src))
	rec.URI = dst
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(fileKey(dst), data); err != nil {
		return err
	}
	if rec.FolderURN != "" {
		return txn.Set(folderIdxKey(rec.FolderURN, dst), nil)
	}
	return nil
}

func moveFolderContentsInTxn(txn *badger.Txn, srcDir, dstDir string) error {
	prefix := []byte(prefixIdxFolder + srcDir + ":")
	var uris []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		uris = append(uris, key[len(prefix):])
	}
	it.Close()
	for _, uri := range uris {
		rel := strings.TrimPrefix(uri, srcDir)
		if err := moveFileInTxn(txn, uri, dstDir+rel); err != nil {
			return err
		}
	}
	return nil
}

func clearContentInTxn(txn *badger.Txn, path string) error {
	rec, err := getRecordInTxn(txn, path)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	rec.Mimetype = ""
	rec.ExtractorHash = ""
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(fileKey(path), data)
}

func getRecordInTxn(txn *badger.Txn, uri string) (record, error) {
	var rec record
	item, err := txn.Get(fileKey(uri))
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) })
	return rec, err
}

func toFileRecord(rec record) FileRecord {
	return FileRecord{
		URI:           rec.URI,
		FolderURN:     rec.FolderURN,
		LastModified:  rec.LastModified,
		ExtractorHash: rec.ExtractorHash,
		Mimetype:      rec.Mimetype,
	}
}

func sortByURI(recs []FileRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].URI < recs[j].URI })
}
