package envvar

const (
	// OrtserveEnv is the environment variable used to determine the environment
	OrtserveEnv = "ORTSERVE_ENV"

	// OrtserveModelsPath is the environment variable used to override the models directory
	OrtserveModelsPath = "ORTSERVE_MODELS_PATH"

	// OrtserveORTLib is the environment variable used to locate the ONNX Runtime shared library
	OrtserveORTLib = "ORTSERVE_ORT_LIB"
)
