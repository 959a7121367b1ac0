// Package access decides who may see and modify a document. Access is
// document-wide and binary: the owner plus every email in sharedWith.
package access

import (
	"naskahsync/internal/document/model"
)

// User is the identity supplied by the identity gateway. The core trusts it.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func CanRead(u User, doc *model.Document) bool {
	if doc == nil {
		return false
	}
	if u.ID != "" && u.ID == doc.Owner {
		return true
	}
	return u.Email != "" && doc.IsSharedWith(u.Email)
}

// CanWrite is identical to CanRead; there is no read-only share tier.
func CanWrite(u User, doc *model.Document) bool {
	return CanRead(u, doc)
}

func IsOwner(u User, doc *model.Document) bool {
	return doc != nil && u.ID != "" && u.ID == doc.Owner
}
