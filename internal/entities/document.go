package entities

const MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type RenderedFile struct {
	Name     string
	Data     []byte
	MIMEType string
}

// DocBlock is one paragraph of a generated document.
type DocBlock struct {
	Text     string
	Heading  bool
	Centered bool
}
