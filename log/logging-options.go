package log

import "errors"

const (
	//LevelDebug debug level logging, all messages outputted
	LevelDebug = "DEBUG"
	//LevelInfo info level logging, no debug information, a lot of info
	LevelInfo = "INFO"
	//LevelWarn warning level logging, only recovered errors, and fatal errors
	LevelWarn = "WARN"
	//LevelError error level logging, no other information other then fatal errors
	LevelError = "ERROR"
)

const (
	//FormatText writes human readable key=value lines
	FormatText = "TEXT"
	//FormatJSON writes one JSON object per line
	FormatJSON = "JSON"
)

//Options holds the configuration settings
//for the logging operations. This is JSON serializable
//so we can load from a file.
type Options struct {
	//Path holds the file path to write logs too.
	//If this value is empty, then no file writing is
	//done and only STDOUT will be used
	Path string `json:"path"`

	//Level sets the logging level in which only
	//messages at, or above, this level will be witten.
	//The values expected are:
	//	DEBUG,INFO,WARN,ERROR
	//Where the default is INFO
	Level string `json:"level"`

	//Format selects the line format, either TEXT or JSON
	Format string `json:"format"`
}

//DefaultOptions holds the default options
//for logging Options objects
var DefaultOptions = Options{
	Path:   "",
	Level:  LevelInfo,
	Format: FormatText,
}

var (
	//ErrOptionLevel specifies the level field of the Options object is invalid
	ErrOptionLevel = errors.New("invalid logging level option provided")

	//ErrOptionFormat specifies the format field of the Options object is invalid
	ErrOptionFormat = errors.New("invalid logging format option provided")
)

//Equals returns true if this object deep equals the provided one
func (o Options) Equals(opt Options) bool {
	return o == opt
}

//Verify confirms that all the options are valid
//within the set. If not returns an error declaring
//the problem.
func (o Options) Verify() error {
	if o.Level != LevelDebug &&
		o.Level != LevelInfo &&
		o.Level != LevelWarn &&
		o.Level != LevelError {
		return ErrOptionLevel
	}

	if o.Format != FormatText && o.Format != FormatJSON {
		return ErrOptionFormat
	}

	return nil
}

//MergeFrom combines the values from the supplied Options
//parameter into this current options. Taking care to only override
//things needed. Will verify the results and return the object
//for any validation errors.
//
//Empty fields in the supplied object never override
func (o *Options) MergeFrom(opt Options) error {
	if len(opt.Path) != 0 {
		o.Path = opt.Path
	}

	if opt.Level != "" {
		o.Level = opt.Level
	}

	if opt.Format != "" {
		o.Format = opt.Format
	}

	return o.Verify()
}

//CombineOptions takes a variable amount of Options objects
//and merges them into a single object, carefully merging them
//using Options.MergeFrom() method. The starting object is DefaultOptions,
//so if no parameters are provided, the defaults are returned.
//Returns the new object, or an error if the final result does not
//pass validation.
func CombineOptions(opts ...Options) (Options, error) {
	res := DefaultOptions

	var err error
	for _, opt := range opts {
		err = res.MergeFrom(opt)
		if err != nil {
			return res, err
		}
	}

	return res, nil
}
