package localstore

// Document is one entity as held in a collection entry. Every document
// carries its identifier under "id".
type Document = map[string]any

// DocID returns the document's identifier, empty when unset.
func DocID(doc Document) string {
	id, _ := doc["id"].(string)
	return id
}

// Documents returns the document array stored under key, nil when absent.
func (s *Store) Documents(key string) []Document {
	var docs []Document
	s.Read(key, &docs)
	return docs
}

// Append adds a document to the collection entry under key.
func (s *Store) Append(key string, doc Document) {
	docs := s.Documents(key)
	s.Write(key, append(docs, doc))
}

// Replace overwrites the document with the given id. It reports whether a
// document with that id existed.
func (s *Store) Replace(key, id string, doc Document) bool {
	docs := s.Documents(key)
	for i := range docs {
		if DocID(docs[i]) == id {
			docs[i] = doc
			s.Write(key, docs)
			return true
		}
	}
	return false
}

// Remove deletes the document with the given id, reporting whether it existed.
func (s *Store) Remove(key, id string) bool {
	docs := s.Documents(key)
	for i := range docs {
		if DocID(docs[i]) == id {
			s.Write(key, append(docs[:i], docs[i+1:]...))
			return true
		}
	}
	return false
}

// Find returns the document with the given id.
func (s *Store) Find(key, id string) (Document, bool) {
	for _, doc := range s.Documents(key) {
		if DocID(doc) == id {
			return doc, true
		}
	}
	return nil, false
}

// RewriteID swaps a locally assigned temporary id for the server-assigned
// one so later updates and deletes target the right document.
func (s *Store) RewriteID(key, tempID, serverID string) {
	docs := s.Documents(key)
	for i := range docs {
		if DocID(docs[i]) == tempID {
			docs[i]["id"] = serverID
			s.Write(key, docs)
			return
		}
	}
}
