package renderer

import (
	"testing"
)

func TestDestroyReleasesEveryHandleOnce(t *testing.T) {
	r, fx := newTestRenderer(t, 3)

	frame := 0
	for i := 0; i < 4; i++ {
		if err := r.Render(frame, i == 2, testCamera); err != nil {
			t.Fatalf("Render: %v", err)
		}
		frame = NextFrame(frame)
	}

	fx.ledger.reset()
	r.Destroy()

	if len(fx.ledger.live) != 0 {
		t.Errorf("handles still live after Destroy: %v", fx.ledger.live)
	}
	if len(fx.ledger.calls) == 0 || fx.ledger.calls[0] != "device.WaitIdle" {
		t.Errorf("Destroy did not wait for idle first: %v", fx.ledger.calls)
	}
}

func TestDestroyOrder(t *testing.T) {
	r, fx := newTestRenderer(t, 2)
	r.Destroy()

	// Each pair must be released first-before-second.
	order := [][2]string{
		{"commandPool/0", "framebuffer/0"},
		{"framebuffer/0", "pipeline"},
		{"pipeline", "renderPass"},
		{"renderPass", "uniform/0"},
		{"uniform/0", "view/0"},
		{"view/0", "swapchain"},
		{"swapchain", "descriptorSetLayout"},
		{"descriptorSetLayout", "sampler"},
		{"sampler", "texture"},
		{"texture", "vertexBuffer"},
		{"vertexBuffer", "inFlight/0"},
		{"inFlight/0", "imageAvailable/1"},
		{"imageAvailable/1", "device"},
		{"device", "surface"},
		{"surface", "messenger"},
		{"messenger", "instance"},
	}
	for _, pair := range order {
		first := fx.ledger.freedIndex(pair[0])
		second := fx.ledger.freedIndex(pair[1])
		if first < 0 || second < 0 {
			t.Errorf("%s or %s never released", pair[0], pair[1])
			continue
		}
		if first > second {
			t.Errorf("%s released after %s", pair[0], pair[1])
		}
	}
}

func TestDestroyPartialRenderer(t *testing.T) {
	l := newLedger(t)
	r := &Renderer{
		cfg:      DefaultConfig(),
		instance: newFakeInstance(l),
		device:   newFakeDevice(l),
	}

	r.Destroy()

	if len(l.live) != 0 {
		t.Errorf("handles still live after Destroy: %v", l.live)
	}
}

func TestDestroyBeforeFirstSwapchain(t *testing.T) {
	l := newLedger(t)
	r := &Renderer{
		cfg:       DefaultConfig(),
		window:    &fakeWindow{},
		instance:  newFakeInstance(l),
		device:    newFakeDevice(l),
		swapchain: &fakeSwapchain{ledger: l, imageCount: 3},
		passes:    newFakePasses(l),
		resources: newFakeResources(l),
		frames:    newFakeFrames(l),

		suspended:       true,
		pendingRecreate: true,
	}

	if err := r.Render(0, false, testCamera); err != nil {
		t.Fatalf("Render: %v", err)
	}
	r.Destroy()

	if len(l.live) != 0 {
		t.Errorf("handles still live after Destroy: %v", l.live)
	}
}

func TestNewRejectsNilWindow(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	if err == nil {
		t.Fatal("New(nil) succeeded, want error")
	}
}
