package verify

// knownGlobals lists names provided by JavaScript engines, browsers and Node
// that compiled output may use without declaring them.
var knownGlobals = makeSet(
	// language
	"globalThis", "undefined", "NaN", "Infinity", "arguments", "eval",
	"isFinite", "isNaN", "parseFloat", "parseInt",
	"decodeURI", "decodeURIComponent", "encodeURI", "encodeURIComponent", "escape", "unescape",
	"Object", "Function", "Boolean", "Symbol", "Error", "AggregateError", "EvalError",
	"RangeError", "ReferenceError", "SyntaxError", "TypeError", "URIError",
	"Number", "BigInt", "Math", "Date", "String", "RegExp",
	"Array", "Int8Array", "Uint8Array", "Uint8ClampedArray", "Int16Array", "Uint16Array",
	"Int32Array", "Uint32Array", "Float32Array", "Float64Array", "BigInt64Array", "BigUint64Array",
	"Map", "Set", "WeakMap", "WeakSet", "WeakRef", "FinalizationRegistry",
	"ArrayBuffer", "SharedArrayBuffer", "DataView", "Atomics", "JSON",
	"Promise", "Proxy", "Reflect", "Intl", "Iterator", "WebAssembly",
	// browser and worker
	"window", "self", "document", "navigator", "location", "history",
	"console", "performance", "crypto", "localStorage", "sessionStorage",
	"indexedDB", "caches", "customElements",
	"alert", "confirm", "prompt", "postMessage", "importScripts",
	"setTimeout", "clearTimeout", "setInterval", "clearInterval", "queueMicrotask",
	"requestAnimationFrame", "cancelAnimationFrame", "requestIdleCallback", "cancelIdleCallback",
	"structuredClone", "atob", "btoa", "fetch", "reportError",
	"addEventListener", "removeEventListener", "dispatchEvent", "getComputedStyle", "matchMedia",
	"Event", "EventTarget", "CustomEvent", "MessageEvent", "ErrorEvent", "KeyboardEvent", "MouseEvent",
	"AbortController", "AbortSignal", "Blob", "File", "FileReader", "FormData", "Headers",
	"Request", "Response", "URL", "URLSearchParams", "TextEncoder", "TextDecoder",
	"ReadableStream", "WritableStream", "TransformStream", "WebSocket", "Worker", "SharedWorker",
	"MessageChannel", "MessagePort", "BroadcastChannel", "XMLHttpRequest", "Image", "Audio",
	"Node", "Element", "HTMLElement", "Document", "DocumentFragment", "ShadowRoot", "Text",
	"MutationObserver", "IntersectionObserver", "ResizeObserver", "PerformanceObserver",
	"DOMParser", "XMLSerializer", "CSS", "CSSStyleSheet", "Notification", "ServiceWorker",
	// node
	"process", "Buffer", "global", "require", "module", "exports", "__dirname", "__filename",
	"setImmediate", "clearImmediate",
)

func makeSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func isKnownGlobal(name string) bool {
	_, ok := knownGlobals[name]
	return ok
}
