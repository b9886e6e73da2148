package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"github.com/robert-malhotra/go-hdf5/hdf5"

	"diffkit/internal/domain"
)

const (
	experimentsGroup = "Experiments"
	dataDataset      = "data"
	shapeAttr        = "shape"
	metadataGroup    = "metadata"
	originalGroup    = "original_metadata"
	untitled         = "__unnamed__"

	// attributesHolder is an empty dataset whose attributes belong to the
	// enclosing group. Group attributes written by other HDF5 libraries are
	// read as well.
	attributesHolder = "_attributes"

	noneValue  = "_None_"
	trueValue  = "_bool_True"
	falseValue = "_bool_False"
)

var ErrNoExperiment = errors.New("file holds no experiment")

// HSPYLoader reads HyperSpy HDF5 files
type HSPYLoader struct{}

func (l *HSPYLoader) Format() Format {
	return FormatHSPY
}

// Load reads the first experiment under /Experiments.
func (l *HSPYLoader) Load(ctx context.Context, path string) (*domain.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	exps, err := f.OpenGroup("/" + experimentsGroup)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoExperiment, err)
	}
	names, err := exps.Members()
	if err != nil {
		return nil, fmt.Errorf("listing experiments: %w", err)
	}
	names = slices.DeleteFunc(names, func(n string) bool { return n == attributesHolder })
	if len(names) == 0 {
		return nil, ErrNoExperiment
	}
	sort.Strings(names)

	exp, err := exps.OpenGroup(names[0])
	if err != nil {
		return nil, fmt.Errorf("opening experiment %q: %w", names[0], err)
	}
	return readExperiment(exp, names[0], path)
}

func readExperiment(exp *hdf5.Group, name, path string) (*domain.Signal, error) {
	ds, err := exp.OpenDataset(dataDataset)
	if err != nil {
		return nil, fmt.Errorf("opening data: %w", err)
	}
	data, err := ds.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	shape := datasetShape(ds, len(data))

	axes, navDims, err := readAxes(exp, len(shape))
	if err != nil {
		return nil, err
	}

	md := domain.NewMetadata()
	if g, err := exp.OpenGroup(metadataGroup); err == nil {
		tree, err := readGroupTree(g)
		if err != nil {
			return nil, fmt.Errorf("reading metadata: %w", err)
		}
		md = domain.MetadataFromDict(tree)
	}

	var original *domain.Metadata
	if g, err := exp.OpenGroup(originalGroup); err == nil {
		tree, err := readGroupTree(g)
		if err != nil {
			return nil, fmt.Errorf("reading original metadata: %w", err)
		}
		original = domain.MetadataFromDict(tree)
	}

	if !md.Has(domain.MetaTitle) && name != untitled {
		md.Set(domain.MetaTitle, name)
	}
	if !md.Has(domain.MetaOriginalFilename) {
		md.Set(domain.MetaOriginalFilename, filepath.Base(path))
	}

	opts := []domain.SignalOption{
		domain.WithMetadata(md),
		domain.WithOriginalMetadata(original),
		domain.WithAxes(axes),
	}
	if navDims >= 0 {
		opts = append(opts, domain.WithNavigationDims(navDims))
	}
	return domain.NewSignal(data, shape, opts...)
}

// datasetShape prefers the shape attribute of flat datasets over the
// stored dataspace.
func datasetShape(ds *hdf5.Dataset, n int) []int {
	if a := ds.Attr(shapeAttr); a != nil {
		if dims, err := a.ReadInt64(); err == nil && len(dims) > 0 {
			shape := make([]int, len(dims))
			size := 1
			for i, d := range dims {
				shape[i] = int(d)
				size *= int(d)
			}
			if size == n {
				return shape
			}
		}
	}

	dims := ds.Shape()
	if len(dims) == 0 {
		return []int{n}
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape
}

// readAxes reads the axis-N groups. navDims is -1 when the file has no
// axis groups.
func readAxes(exp *hdf5.Group, ndim int) ([]domain.Axis, int, error) {
	axes := make([]domain.Axis, ndim)
	navDims, found := 0, false
	for i := range axes {
		axes[i] = domain.Axis{Scale: 1}
		g, err := exp.OpenGroup("axis-" + strconv.Itoa(i))
		if err != nil {
			continue
		}
		found = true

		attrs := make(map[string]any)
		if err := readGroupAttrs(g, attrs); err != nil {
			return nil, 0, fmt.Errorf("reading axis-%d: %w", i, err)
		}
		ax := &axes[i]
		ax.Name, _ = attrs["name"].(string)
		ax.Units, _ = attrs["units"].(string)
		if v, ok := attrs["scale"]; ok {
			ax.Scale = number(v, 1)
		}
		ax.Offset = number(attrs["offset"], 0)
		if truthy(attrs["navigate"]) {
			navDims++
		}
	}
	if !found {
		return axes, -1, nil
	}
	return axes, navDims, nil
}

// readGroupTree reads a group hierarchy into nested dictionaries.
func readGroupTree(g *hdf5.Group) (map[string]any, error) {
	tree := make(map[string]any)
	if err := readGroupAttrs(g, tree); err != nil {
		return nil, err
	}

	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	for _, name := range members {
		if name == attributesHolder {
			continue
		}
		if sub, err := g.OpenGroup(name); err == nil {
			child, err := readGroupTree(sub)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			tree[name] = child
			continue
		}
		ds, err := g.OpenDataset(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if vals, err := ds.ReadFloat64(); err == nil {
			tree[name] = vals
		} else if strs, err := ds.ReadString(); err == nil {
			tree[name] = strs
		}
	}
	return tree, nil
}

// readGroupAttrs collects the group's own attributes and those of its
// holder dataset into dst.
func readGroupAttrs(g *hdf5.Group, dst map[string]any) error {
	for _, name := range g.Attrs() {
		v, err := g.Attr(name).Value()
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		dst[name] = decodeAttr(v)
	}

	holder, err := g.OpenDataset(attributesHolder)
	if err != nil {
		return nil
	}
	for _, name := range holder.Attrs() {
		v, err := holder.Attr(name).Value()
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		dst[name] = decodeAttr(v)
	}
	return nil
}

// SaveHSPY writes s as a HyperSpy experiment.
func SaveHSPY(path string, s *domain.Signal) (err error) {
	f, err := hdf5.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	root := f.Root()
	if _, err := root.CreateDataset(attributesHolder, []uint8{0},
		hdf5.WithAttribute("file_format", "HyperSpy"),
		hdf5.WithAttribute("file_format_version", "3.1"),
	); err != nil {
		return fmt.Errorf("writing file attributes: %w", err)
	}

	title := strings.ReplaceAll(s.Title(), "/", "_")
	if title == "" || title == "." || title == ".." {
		title = untitled
	}
	return writeGroup(root, experimentsGroup, func(exps *hdf5.Group) error {
		if err := writeGroup(exps, title, func(exp *hdf5.Group) error {
			return writeExperiment(exp, s)
		}); err != nil {
			return err
		}
		return syncLinks(exps)
	})
}

func writeExperiment(exp *hdf5.Group, s *domain.Signal) error {
	shape := make([]int64, len(s.Shape))
	for i, d := range s.Shape {
		shape[i] = int64(d)
	}
	if _, err := exp.CreateDataset(dataDataset, s.Data, hdf5.WithAttribute(shapeAttr, shape)); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}

	for i, ax := range s.Axes {
		tree := map[string]any{
			"name":     ax.Name,
			"size":     int64(ax.Size),
			"scale":    ax.Scale,
			"offset":   ax.Offset,
			"units":    ax.Units,
			"navigate": ax.Navigate,
		}
		if err := writeGroup(exp, "axis-"+strconv.Itoa(i), func(g *hdf5.Group) error {
			return writeGroupTree(g, tree)
		}); err != nil {
			return fmt.Errorf("writing axes: %w", err)
		}
	}

	md := s.Metadata.Clone()
	md.Set(domain.MetaSignalType, string(s.Type))
	if err := writeGroup(exp, metadataGroup, func(g *hdf5.Group) error {
		return writeGroupTree(g, md.AsDictionary())
	}); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	if s.OriginalMetadata != nil {
		if err := writeGroup(exp, originalGroup, func(g *hdf5.Group) error {
			return writeGroupTree(g, s.OriginalMetadata.AsDictionary())
		}); err != nil {
			return fmt.Errorf("writing original metadata: %w", err)
		}
	}
	return syncLinks(exp)
}

// writeGroup creates name under parent, fills it and repoints the link
// parent holds for it. The parent header picks the new address up on its
// next link add, so every fill that writes subgroups ends with one.
func writeGroup(parent *hdf5.Group, name string, fill func(*hdf5.Group) error) error {
	g, err := parent.CreateGroup(name)
	if err != nil {
		return err
	}
	if err := fill(g); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return relink(parent, g)
}

func writeGroupTree(g *hdf5.Group, tree map[string]any) error {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []hdf5.DatasetOption
	nested := false
	for _, k := range keys {
		if child, ok := tree[k].(map[string]any); ok {
			if err := writeGroup(g, k, func(sub *hdf5.Group) error {
				return writeGroupTree(sub, child)
			}); err != nil {
				return err
			}
			nested = true
			continue
		}
		if v, ok := encodeAttr(tree[k]); ok {
			attrs = append(attrs, hdf5.WithAttribute(k, v))
		}
	}
	if len(attrs) == 0 && !nested {
		return nil
	}
	_, err := g.CreateDataset(attributesHolder, []uint8{0}, attrs...)
	return err
}

// syncLinks adds an empty holder so the header of g is rewritten with the
// repointed links of its subgroups.
func syncLinks(g *hdf5.Group) error {
	_, err := g.CreateDataset(attributesHolder, []uint8{0})
	return err
}

// relink points the link parent holds for child at the current header of
// child. go-hdf5 moves a group header on every link add and only repoints
// links held by the root group, so groups two levels down would otherwise
// keep the address of their first, empty header.
func relink(parent, child *hdf5.Group) error {
	addr := reflect.ValueOf(child).Elem().FieldByName("addr")
	links := reflect.ValueOf(parent).Elem().FieldByName("pendingLinks")
	if !addr.IsValid() || !links.IsValid() || links.Kind() != reflect.Slice {
		return errors.New("unsupported hdf5 group layout")
	}

	name := child.Name()
	for i := 0; i < links.Len(); i++ {
		link := links.Index(i).Elem()
		if link.FieldByName("Name").String() != name {
			continue
		}
		target := link.FieldByName("ObjectAddress")
		reflect.NewAt(target.Type(), unsafe.Pointer(target.UnsafeAddr())).Elem().SetUint(addr.Uint())
		return nil
	}
	return fmt.Errorf("group %s holds no link to %q", parent.Path(), name)
}

// encodeAttr converts a metadata leaf to a type HDF5 attributes can hold.
// Empty slices have no HDF5 representation here and are dropped.
func encodeAttr(v any) (any, bool) {
	switch v := v.(type) {
	case nil:
		return noneValue, true
	case bool:
		if v {
			return trueValue, true
		}
		return falseValue, true
	case string:
		return v, true
	case int:
		return int64(v), true
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64, float64:
		return v, true
	case uint:
		return uint64(v), true
	case float32:
		return float64(v), true
	case []float64:
		return v, len(v) > 0
	case []int64:
		return v, len(v) > 0
	case []string:
		return v, len(v) > 0
	case []int:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, len(out) > 0
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		nums := make([]float64, 0, len(v))
		for _, x := range v {
			f, ok := asFloat(x)
			if !ok {
				break
			}
			nums = append(nums, f)
		}
		if len(nums) == len(v) {
			return nums, true
		}
		strs := make([]string, len(v))
		for i, x := range v {
			strs[i] = fmt.Sprint(x)
		}
		return strs, true
	default:
		return fmt.Sprint(v), true
	}
}

func decodeAttr(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case noneValue:
		return nil
	case trueValue:
		return true
	case falseValue:
		return false
	}
	return s
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func number(v any, fallback float64) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	return fallback
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case string:
		return v == trueValue || strings.EqualFold(v, "true")
	}
	return false
}
