package constants

import "os"

// EnableDetailedTracing records every gas charge in the execution trace.
var EnableDetailedTracing = os.Getenv("VENUS_VM_ENABLE_TRACING") == "1"

// DisableModuleCache compiles actor code on every call. Only useful when debugging engines.
var DisableModuleCache = os.Getenv("VENUS_VM_DISABLE_MODULE_CACHE") == "1"
