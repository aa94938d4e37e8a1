package attendance

import (
	"encoding/json"
	"log"

	"github.com/ashutoshvm-off/library-attendance/internal/remote"
)

// toDoc flattens a record into the schemaless document shape the stores
// hold. Timestamps serialize as RFC 3339 so the remote store can order by
// them lexically.
func toDoc(rec Record) remote.Document {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("attendance: encode record: %v", err)
		return remote.Document{}
	}
	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("attendance: decode record: %v", err)
		return remote.Document{}
	}
	return doc
}

func fromDoc(doc remote.Document) (Record, bool) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("attendance: malformed record document %q: %v", remote.DocID(doc), err)
		return Record{}, false
	}
	return rec, true
}

func fromDocs(docs []remote.Document) []Record {
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		if rec, ok := fromDoc(doc); ok {
			records = append(records, rec)
		}
	}
	return records
}
