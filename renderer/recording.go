package renderer

import (
	"sync/atomic"

	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/shaders"
)

var resourceID atomic.Uint64

func nextResourceID() ResourceID {
	return ResourceID(resourceID.Add(1))
}

type ResourceID uint64

type ResourceProxyKind int

const (
	ResourceProxyKindBuffer ResourceProxyKind = iota + 1
	ResourceProxyKindImage
)

type ResourceProxy struct {
	Kind ResourceProxyKind
	BufferProxy
	ImageProxy
}

// Recording is a frame's worth of GPU work, recorded CPU-side and replayed
// by an engine. Submission is asynchronous relative to the host: commands
// may execute after the recording call returns, so CPU-side reuse of the
// referenced memory must wait until the engine retires the frame.
type Recording struct {
	Commands []Command
	// Epoch is the cache epoch the frame was recorded in. Caches delay
	// region reclaim by two epochs so retired frames never lose the data
	// their draws reference.
	Epoch uint64
}

func (rec *Recording) push(cmd Command) {
	rec.Commands = append(rec.Commands, cmd)
}

func (rec *Recording) Upload(name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(&Upload{buf, data})
	return buf
}

func (rec *Recording) UploadUniform(name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(&UploadUniform{buf, data})
	return buf
}

func (rec *Recording) UploadImage(width, height uint32, format ImageFormat, data []byte) ImageProxy {
	img := NewImageProxy(width, height, format)
	rec.push(&UploadImage{img, data})
	return img
}

func (rec *Recording) WriteImage(img ImageProxy, x, y, width, height uint32, data []byte) {
	rec.push(&WriteImage{img, [4]uint32{x, y, width, height}, data})
}

func (rec *Recording) Draw(draw Draw) {
	rec.push(&draw)
}

func (rec *Recording) ClearTexture(img ImageProxy, color [4]float32) {
	rec.push(&ClearTexture{img, color})
}

func (rec *Recording) CopyTexture(src, dst ImageProxy, dstX, dstY uint32) {
	rec.push(&CopyTexture{src, dst, dstX, dstY})
}

func (rec *Recording) FreeBuffer(buf BufferProxy) {
	rec.push(&FreeBuffer{buf})
}

func (rec *Recording) FreeImage(img ImageProxy) {
	rec.push(&FreeImage{img})
}

func NewBufferProxy(size uint64, name string) BufferProxy {
	id := nextResourceID()
	return BufferProxy{size, id, name}
}

func NewImageProxy(width, height uint32, format ImageFormat) ImageProxy {
	id := nextResourceID()
	return ImageProxy{
		Width:  width,
		Height: height,
		Format: format,
		ID:     id,
	}
}

type BufferProxy struct {
	Size uint64
	ID   ResourceID
	Name string
}

func (p BufferProxy) Resource() ResourceProxy {
	return ResourceProxy{
		Kind:        ResourceProxyKindBuffer,
		BufferProxy: p,
	}
}

type ImageFormat int

const (
	Rgba8 ImageFormat = iota
	Bgra8
	R8
	Stencil8
)

type ImageProxy struct {
	Width  uint32
	Height uint32
	Format ImageFormat
	ID     ResourceID
}

func (p ImageProxy) Resource() ResourceProxy {
	return ResourceProxy{
		Kind:       ResourceProxyKindImage,
		ImageProxy: p,
	}
}

type Command interface {
	isCommand()
}

func (*Upload) isCommand()        {}
func (*UploadUniform) isCommand() {}
func (*UploadImage) isCommand()   {}
func (*WriteImage) isCommand()    {}
func (*Draw) isCommand()          {}
func (*ClearTexture) isCommand()  {}
func (*CopyTexture) isCommand()   {}
func (*FreeBuffer) isCommand()    {}
func (*FreeImage) isCommand()     {}

type Upload struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadUniform struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadImage struct {
	Image ImageProxy
	Data  []byte
}

type WriteImage struct {
	Image  ImageProxy
	Coords [4]uint32
	Data   []byte
}

type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
)

// Draw is one render pass over one pipeline variant. Target and Stencil
// name the attachments; a zero-ID Stencil proxy means the pass has no
// stencil attachment, a zero-ID Index proxy means a non-indexed draw.
type Draw struct {
	Key     shaders.VariantKey
	Target  ImageProxy
	Stencil ImageProxy

	Load        LoadOp
	ClearColor  [4]float32
	StencilLoad LoadOp
	StencilRef  uint32

	Vertex   BufferProxy
	Index    BufferProxy
	Bindings []ResourceProxy

	VertexCount   uint32
	FirstVertex   uint32
	IndexCount    uint32
	FirstIndex    uint32
	BaseVertex    int32
	InstanceCount uint32

	// Winding is the submitted orientation of the geometry; pipelines that
	// cull back faces drop triangles wound the other way without error.
	Winding gfx.Winding

	// Scissor restricts the draw to a sub-rectangle of the target when
	// width and height are non-zero (x, y, w, h).
	Scissor [4]uint32
}

// ClearTexture fills a color texture with a constant. Engines implement it
// as a render pass clear, not a buffer write.
type ClearTexture struct {
	Image ImageProxy
	Color [4]float32
}

// CopyTexture requests a texture-to-texture copy. Engines without a native
// blit replay it as a BlitAsDraw pass; either way the destination pixels
// are a bit-identical copy of the source.
type CopyTexture struct {
	Src  ImageProxy
	Dst  ImageProxy
	DstX uint32
	DstY uint32
}

type FreeBuffer struct {
	Buffer BufferProxy
}

type FreeImage struct {
	Image ImageProxy
}
