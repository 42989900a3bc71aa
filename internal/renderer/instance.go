package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// VK_KHR_portability_enumeration has no wrapper package in the extensions
// release we build against.
const (
	portabilityEnumerationExtension = "VK_KHR_portability_enumeration"

	instanceCreateEnumeratePortability core1_0.InstanceCreateFlags = 0x00000001
)

// portabilityOptions enables enumeration of portability implementations such
// as MoltenVK when the loader offers it.
func portabilityOptions[V any](options *core1_0.InstanceCreateInfo, available map[string]V) bool {
	if _, ok := available[portabilityEnumerationExtension]; !ok {
		return false
	}
	options.EnabledExtensionNames = append(options.EnabledExtensionNames, portabilityEnumerationExtension)
	options.Flags |= instanceCreateEnumeratePortability
	return true
}

type vkInstance struct {
	loader         core.Loader
	instance       core1_0.Instance
	debugMessenger ext_debug_utils.Messenger
	surface        khr_surface.Surface
}

func debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebugMessage,
	}
}

// requireNames returns the wanted names missing from available.
func requireNames[V any](wanted []string, available map[string]V) []string {
	var missing []string
	for _, name := range wanted {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func createInstance(window *sdl.Window, cfg Config) (*vkInstance, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create loader")
	}

	inst := &vkInstance{loader: loader}

	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    cfg.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "simplegame",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}

	sdlExtensions := window.VulkanGetInstanceExtensions()
	if missing := requireNames(sdlExtensions, extensions); len(missing) > 0 {
		return nil, errors.Wrapf(ErrMissingExtension, "sdl surface needs %v", missing)
	}
	instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, sdlExtensions...)

	if cfg.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	enumerationSupported := portabilityOptions(&instanceOptions, extensions)

	if cfg.Validation {
		layers, _, err := loader.AvailableLayers()
		if err != nil {
			return nil, errors.Wrap(err, "enumerate instance layers")
		}

		if missing := requireNames(validationLayers, layers); len(missing) > 0 {
			return nil, errors.Wrapf(ErrValidationUnavailable, "layers %v not available, install the Vulkan SDK or disable validation", missing)
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayers...)

		// Covers messages emitted during instance creation and destruction.
		instanceOptions.Next = debugMessengerOptions()
	}

	inst.instance, _, err = loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}

	if cfg.Validation {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(inst.instance)
		inst.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(inst.instance, nil, debugMessengerOptions())
		if err != nil {
			inst.Destroy()
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	surfaceLoader := vkng_sdl2.CreateExtensionFromInstance(inst.instance)
	inst.surface, _, err = surfaceLoader.CreateSurface(inst.instance, window)
	if err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "create surface")
	}

	Logger().Info("instance created", "validation", cfg.Validation, "portability", enumerationSupported)
	return inst, nil
}

func (i *vkInstance) Destroy() {
	if i.surface != nil {
		i.surface.Destroy(nil)
		i.surface = nil
	}

	if i.debugMessenger != nil {
		i.debugMessenger.Destroy(nil)
		i.debugMessenger = nil
	}

	if i.instance != nil {
		i.instance.Destroy(nil)
		i.instance = nil
	}
}
