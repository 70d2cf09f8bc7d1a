package model

// Organization is the affiliated school or institution submitted with an
// identity. IDExtended is the provider's own composite key format.
type Organization struct {
	ID         int64
	IDExtended string
	Name       string
}

// Identity is a synthetic but well-formed profile used to populate one
// verification attempt.
type Identity struct {
	FirstName    string
	LastName     string
	Email        string
	BirthDate    string // YYYY-MM-DD
	Organization Organization
}

func (i Identity) FullName() string { return i.FirstName + " " + i.LastName }

// Document is one binary evidence artifact to be uploaded to the provider.
type Document struct {
	FileName string
	MIMEType string
	Data     []byte
}

func (d Document) Size() int { return len(d.Data) }
