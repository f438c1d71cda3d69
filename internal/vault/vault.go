package vault

import (
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flitsinc/taskbridge/internal/planner"
)

// Vault resolves symbolic attachment names to files under a single
// directory. A `<name>.private` sidecar file marks an attachment as
// private: it stays listed and sendable on explicit user request, but its
// content is withheld from reads.
type Vault struct {
	dir string
}

func New(dir string) *Vault {
	return &Vault{dir: dir}
}

func (v *Vault) Resolve(name string) planner.Attachment {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean != strings.TrimSpace(name) {
		return planner.Attachment{Name: name, Reason: "invalid attachment name"}
	}
	path := filepath.Join(v.dir, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return planner.Attachment{Name: name, Reason: "attachment not found"}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return planner.Attachment{Name: name, Reason: "attachment unreadable: " + err.Error()}
	}
	return planner.Attachment{
		OK:      true,
		Name:    clean,
		Mime:    mimeFor(clean),
		Size:    info.Size(),
		Private: v.isPrivate(clean),
		Content: content,
	}
}

func (v *Vault) List() []planner.AttachmentInfo {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil
	}
	var out []planner.AttachmentInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".private") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, planner.AttachmentInfo{
			Name:    entry.Name(),
			Mime:    mimeFor(entry.Name()),
			Size:    info.Size(),
			Private: v.isPrivate(entry.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (v *Vault) isPrivate(name string) bool {
	_, err := os.Stat(filepath.Join(v.dir, name+".private"))
	return err == nil
}

func mimeFor(name string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
