package simphoto

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  //decoder registration
	_ "image/jpeg" //decoder registration
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chris-pikul/contacts-rcs/settings"
)

//NoResource is returned when no icon is configured for a subscription
const NoResource = -1

//IconSet is the ordered list of SIM icon images. The position of an
//image in the set is its resource id
type IconSet struct {
	files []string
}

//NewIconSet builds an IconSet from files, joining relative entries to dir
func NewIconSet(dir string, files []string) IconSet {
	set := IconSet{files: make([]string, 0, len(files))}
	for _, f := range files {
		if !filepath.IsAbs(f) && dir != "" {
			f = filepath.Join(dir, f)
		}
		set.files = append(set.files, f)
	}
	return set
}

//LoadIconSet uses files when given, otherwise every PNG in dir sorted by name
func LoadIconSet(dir string, files []string) (IconSet, error) {
	if len(files) > 0 {
		return NewIconSet(dir, files), nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return IconSet{}, fmt.Errorf("list icons in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return IconSet{files: matches}, nil
}

//Len returns the number of icons in the set
func (s IconSet) Len() int {
	return len(s.files)
}

//ResourceID maps an icon index to a resource id, NoResource when the
//index is outside the set
func (s IconSet) ResourceID(index int) int {
	if index < 0 || index >= len(s.files) {
		return NoResource
	}
	return index
}

//Render decodes the icon and encodes it as PNG
func (s IconSet) Render(id int) ([]byte, error) {
	if id < 0 || id >= len(s.files) {
		return nil, fmt.Errorf("icon resource %d: %w", id, ErrRender)
	}

	f, err := os.Open(s.files[id])
	if err != nil {
		return nil, fmt.Errorf("open icon %s: %w", s.files[id], err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode icon %s: %w", s.files[id], err)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode icon %s: %w", s.files[id], err)
	}
	return buf.Bytes(), nil
}

//IconResourceID resolves the icon chosen for a subscription from the
//preferred icon setting. Without a settings reader there is no icon
func IconResourceID(ctx context.Context, r settings.Reader, icons IconSet, subscription int) int {
	if r == nil {
		return NoResource
	}

	value, err := r.String(ctx, settings.PreferredSimIconIndex)
	if err != nil || value == "" {
		return NoResource
	}

	indexes := strings.Split(value, ",")
	if subscription < 0 || subscription >= len(indexes) {
		return NoResource
	}

	index, err := strconv.Atoi(strings.TrimSpace(indexes[subscription]))
	if err != nil {
		return NoResource
	}
	return icons.ResourceID(index)
}
