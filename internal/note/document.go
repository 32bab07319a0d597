package note

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDocument renders the text of a newly created database document:
// marker frontmatter naming the database and its source folder, and the
// declared default local settings bounded by the settings sentinel.
func DefaultDocument(name, sourceFolder string, local LocalSettings) string {
	var b strings.Builder

	b.WriteString(frontmatterFence + "\n")
	b.WriteString(MarkerKey + ": basic\n")
	fmt.Fprintf(&b, "name: %s\n", yamlScalar(name))
	if sourceFolder != "" {
		b.WriteString("source:\n")
		fmt.Fprintf(&b, "  folder: %s\n", yamlScalar(sourceFolder))
	}
	b.WriteString("columns: []\n")
	b.WriteString(frontmatterFence + "\n\n")

	b.WriteString(settingsOpen + "\n")
	out, err := yaml.Marshal(local)
	if err != nil {
		// LocalSettings is a plain struct; Marshal cannot fail on it.
		panic(err)
	}
	b.Write(out)
	b.WriteString(settingsClose + "\n")

	return b.String()
}

func yamlScalar(s string) string {
	var n yaml.Node
	n.SetString(s)
	out, err := yaml.Marshal(&n)
	if err != nil {
		return s
	}
	return strings.TrimRight(string(out), "\n")
}
