package renderer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// ledger records component calls in order and tracks live handles so tests
// can check that every handle is released exactly once.
type ledger struct {
	t     *testing.T
	calls []string
	live  map[string]bool
	freed []string
}

func newLedger(t *testing.T) *ledger {
	return &ledger{t: t, live: make(map[string]bool)}
}

func (l *ledger) call(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *ledger) acquire(handle string) {
	l.t.Helper()
	if l.live[handle] {
		l.t.Errorf("handle %s acquired while still live", handle)
	}
	l.live[handle] = true
}

func (l *ledger) release(handle string) {
	l.t.Helper()
	if !l.live[handle] {
		l.t.Errorf("handle %s released but not live", handle)
		return
	}
	delete(l.live, handle)
	l.freed = append(l.freed, handle)
}

func (l *ledger) count(call string) int {
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (l *ledger) countPrefix(prefix string) int {
	n := 0
	for _, c := range l.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// index returns the position of the first call equal to call at or after from, or -1.
func (l *ledger) index(call string, from int) int {
	for i := from; i < len(l.calls); i++ {
		if l.calls[i] == call {
			return i
		}
	}
	return -1
}

func (l *ledger) freedIndex(handle string) int {
	for i, h := range l.freed {
		if h == handle {
			return i
		}
	}
	return -1
}

func (l *ledger) reset() {
	l.calls = nil
}

type fakeWindow struct {
	width, height int
}

func (w *fakeWindow) DrawableSize() (int, int) { return w.width, w.height }

type fakeInstance struct {
	ledger *ledger
}

func newFakeInstance(l *ledger) *fakeInstance {
	l.acquire("instance")
	l.acquire("messenger")
	l.acquire("surface")
	return &fakeInstance{ledger: l}
}

func (i *fakeInstance) Destroy() {
	i.ledger.call("instance.Destroy")
	i.ledger.release("surface")
	i.ledger.release("messenger")
	i.ledger.release("instance")
}

type fakeDevice struct {
	ledger  *ledger
	idleErr error
}

func newFakeDevice(l *ledger) *fakeDevice {
	l.acquire("device")
	return &fakeDevice{ledger: l}
}

func (d *fakeDevice) WaitIdle() error {
	d.ledger.call("device.WaitIdle")
	return d.idleErr
}

func (d *fakeDevice) Destroy() {
	d.ledger.call("device.Destroy")
	d.ledger.release("device")
}

type acquireResult struct {
	index  int
	status presentStatus
	err    error
}

type fakeSwapchain struct {
	ledger     *ledger
	imageCount int

	extent       core1_0.Extent2D
	views        int
	framebuffers int
	created      bool
	nextImage    int

	acquireResults []acquireResult
	presentResults []presentStatus
	presentErr     error
}

func (s *fakeSwapchain) Create(width, height int) error {
	s.ledger.call("swapchain.Create(%d,%d)", width, height)
	s.ledger.acquire("swapchain")
	s.created = true
	for i := 0; i < s.imageCount; i++ {
		s.ledger.acquire(fmt.Sprintf("view/%d", i))
	}
	s.views = s.imageCount
	s.extent = core1_0.Extent2D{Width: width, Height: height}
	return nil
}

func (s *fakeSwapchain) ImageCount() int          { return s.views }
func (s *fakeSwapchain) Format() core1_0.Format   { return core1_0.FormatB8G8R8A8SRGB }
func (s *fakeSwapchain) Extent() core1_0.Extent2D { return s.extent }

func (s *fakeSwapchain) CreateFramebuffers(core1_0.RenderPass) error {
	s.ledger.call("swapchain.CreateFramebuffers")
	s.ledger.acquire("depth")
	for i := 0; i < s.views; i++ {
		s.ledger.acquire(fmt.Sprintf("framebuffer/%d", i))
	}
	s.framebuffers = s.views
	return nil
}

func (s *fakeSwapchain) Framebuffer(int) core1_0.Framebuffer { return nil }

func (s *fakeSwapchain) DestroyFramebuffers() {
	s.ledger.call("swapchain.DestroyFramebuffers")
	if s.framebuffers == 0 {
		return
	}
	s.ledger.release("depth")
	for i := 0; i < s.framebuffers; i++ {
		s.ledger.release(fmt.Sprintf("framebuffer/%d", i))
	}
	s.framebuffers = 0
}

func (s *fakeSwapchain) AcquireNextImage(core1_0.Semaphore) (int, presentStatus, error) {
	s.ledger.call("swapchain.Acquire")
	if len(s.acquireResults) > 0 {
		result := s.acquireResults[0]
		s.acquireResults = s.acquireResults[1:]
		return result.index, result.status, result.err
	}

	index := s.nextImage
	s.nextImage = (s.nextImage + 1) % s.views
	return index, statusOK, nil
}

func (s *fakeSwapchain) Present(imageIndex int, _ core1_0.Semaphore) (presentStatus, error) {
	s.ledger.call("swapchain.Present(%d)", imageIndex)
	if s.presentErr != nil {
		return statusOK, s.presentErr
	}
	if len(s.presentResults) > 0 {
		status := s.presentResults[0]
		s.presentResults = s.presentResults[1:]
		return status, nil
	}
	return statusOK, nil
}

func (s *fakeSwapchain) Teardown() {
	s.ledger.call("swapchain.Teardown")
	for i := 0; i < s.views; i++ {
		s.ledger.release(fmt.Sprintf("view/%d", i))
	}
	s.views = 0
	s.nextImage = 0
	if s.created {
		s.ledger.release("swapchain")
		s.created = false
	}
}

type fakePasses struct {
	ledger *ledger
	built  bool
}

func newFakePasses(l *ledger) *fakePasses {
	l.acquire("descriptorSetLayout")
	return &fakePasses{ledger: l}
}

func (p *fakePasses) Build(format core1_0.Format, extent core1_0.Extent2D) error {
	p.ledger.call("passes.Build")
	p.ledger.acquire("renderPass")
	p.ledger.acquire("pipelineLayout")
	p.ledger.acquire("pipeline")
	p.built = true
	return nil
}

func (p *fakePasses) RenderPass() core1_0.RenderPass { return nil }
func (p *fakePasses) Layout() core1_0.PipelineLayout { return nil }
func (p *fakePasses) Pipeline() core1_0.Pipeline     { return nil }

func (p *fakePasses) Teardown() {
	p.ledger.call("passes.Teardown")
	if !p.built {
		return
	}
	p.ledger.release("pipeline")
	p.ledger.release("pipelineLayout")
	p.ledger.release("renderPass")
	p.built = false
}

func (p *fakePasses) Destroy() {
	p.ledger.call("passes.Destroy")
	p.ledger.release("descriptorSetLayout")
}

type fakeResources struct {
	ledger   *ledger
	images   int
	uniforms map[int]UniformBufferObject
}

func newFakeResources(l *ledger) *fakeResources {
	for _, handle := range []string{"texture", "sampler", "vertexBuffer", "indexBuffer", "transferPool"} {
		l.acquire(handle)
	}
	return &fakeResources{ledger: l, uniforms: make(map[int]UniformBufferObject)}
}

func (r *fakeResources) CreatePerImage(imageCount int) error {
	r.ledger.call("resources.CreatePerImage(%d)", imageCount)
	for i := 0; i < imageCount; i++ {
		r.ledger.acquire(fmt.Sprintf("uniform/%d", i))
	}
	r.ledger.acquire("descriptorPool")
	r.images = imageCount
	return nil
}

func (r *fakeResources) DescriptorSet(int) core1_0.DescriptorSet { return nil }

func (r *fakeResources) WriteUniform(imageIndex int, ubo UniformBufferObject) error {
	r.ledger.call("resources.WriteUniform(%d)", imageIndex)
	if imageIndex >= r.images {
		return errors.Newf("uniform %d written with only %d images", imageIndex, r.images)
	}
	r.uniforms[imageIndex] = ubo
	return nil
}

func (r *fakeResources) Geometry() (core1_0.Buffer, core1_0.Buffer, int) { return nil, nil, 12 }

func (r *fakeResources) TeardownPerImage() {
	r.ledger.call("resources.TeardownPerImage")
	if r.images == 0 {
		return
	}
	r.ledger.release("descriptorPool")
	for i := 0; i < r.images; i++ {
		r.ledger.release(fmt.Sprintf("uniform/%d", i))
	}
	r.images = 0
}

func (r *fakeResources) Destroy() {
	r.ledger.call("resources.Destroy")
	for _, handle := range []string{"sampler", "texture", "indexBuffer", "vertexBuffer", "transferPool"} {
		r.ledger.release(handle)
	}
}

type fakeFrames struct {
	ledger  *ledger
	pools   int
	targets []frameTargets
	draws   [][]DrawInstance
}

func newFakeFrames(l *ledger) *fakeFrames {
	for i := 0; i < MaxFramesInFlight; i++ {
		l.acquire(fmt.Sprintf("imageAvailable/%d", i))
		l.acquire(fmt.Sprintf("renderFinished/%d", i))
		l.acquire(fmt.Sprintf("inFlight/%d", i))
	}
	return &fakeFrames{ledger: l}
}

func (f *fakeFrames) WaitInFlight(slot int) error {
	f.ledger.call("frames.WaitInFlight(%d)", slot)
	return nil
}

func (f *fakeFrames) ResetInFlight(slot int) error {
	f.ledger.call("frames.ResetInFlight(%d)", slot)
	return nil
}

func (f *fakeFrames) ImageAvailable(int) core1_0.Semaphore { return nil }
func (f *fakeFrames) RenderFinished(int) core1_0.Semaphore { return nil }

func (f *fakeFrames) Allocate(imageCount int) error {
	f.ledger.call("frames.Allocate(%d)", imageCount)
	for i := 0; i < imageCount; i++ {
		f.ledger.acquire(fmt.Sprintf("commandPool/%d", i))
	}
	f.pools = imageCount
	return nil
}

func (f *fakeFrames) Record(imageIndex int, targets frameTargets, draws []DrawInstance) error {
	f.ledger.call("frames.Record(%d)", imageIndex)
	if imageIndex >= f.pools {
		return errors.Newf("record image %d with only %d pools", imageIndex, f.pools)
	}
	f.targets = append(f.targets, targets)
	f.draws = append(f.draws, draws)
	return nil
}

func (f *fakeFrames) Submit(slot, imageIndex int) error {
	f.ledger.call("frames.Submit(%d,%d)", slot, imageIndex)
	return nil
}

func (f *fakeFrames) Teardown() {
	f.ledger.call("frames.Teardown")
	for i := 0; i < f.pools; i++ {
		f.ledger.release(fmt.Sprintf("commandPool/%d", i))
	}
	f.pools = 0
}

func (f *fakeFrames) Destroy() {
	f.ledger.call("frames.Destroy")
	for i := 0; i < MaxFramesInFlight; i++ {
		f.ledger.release(fmt.Sprintf("inFlight/%d", i))
		f.ledger.release(fmt.Sprintf("renderFinished/%d", i))
		f.ledger.release(fmt.Sprintf("imageAvailable/%d", i))
	}
}

type fixture struct {
	ledger    *ledger
	window    *fakeWindow
	device    *fakeDevice
	swapchain *fakeSwapchain
	resources *fakeResources
	frames    *fakeFrames
}

// newTestRenderer assembles a renderer from fakes the way New does, with a
// swapchain of imageCount images already built.
func newTestRenderer(t *testing.T, imageCount int) (*Renderer, *fixture) {
	t.Helper()

	l := newLedger(t)
	fx := &fixture{
		ledger:    l,
		window:    &fakeWindow{width: 800, height: 600},
		device:    newFakeDevice(l),
		swapchain: &fakeSwapchain{ledger: l, imageCount: imageCount},
		resources: newFakeResources(l),
		frames:    newFakeFrames(l),
	}

	r := &Renderer{
		cfg:       DefaultConfig(),
		window:    fx.window,
		instance:  newFakeInstance(l),
		device:    fx.device,
		swapchain: fx.swapchain,
		passes:    newFakePasses(l),
		resources: fx.resources,
		frames:    fx.frames,
	}

	if err := r.buildSwapchain(800, 600); err != nil {
		t.Fatalf("buildSwapchain: %v", err)
	}
	l.reset()
	return r, fx
}
