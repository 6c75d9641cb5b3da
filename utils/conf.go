package utils

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ConfName = "rtsp4k"

var (
	conf     *viper.Viper
	confLock sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.live_interval", 400*time.Millisecond)

	v.SetDefault("rtsp.server", "localhost:8554")

	v.SetDefault("streams.config_path", "./config.json")
	v.SetDefault("streams.data_dir", "./data")
	v.SetDefault("streams.max_relays", 0)

	v.SetDefault("encoder.backend", "ffmpeg")
	v.SetDefault("encoder.bitrate_kbps", 600)
	v.SetDefault("encoder.speed_preset", "ultrafast")
	v.SetDefault("encoder.keyframe_interval", 0)
	v.SetDefault("encoder.profile", "baseline")
	v.SetDefault("encoder.max_width", 3840)
	v.SetDefault("encoder.max_height", 2160)
	v.SetDefault("encoder.default_fps", 30)

	v.SetDefault("codec.ffmpeg_binary", "ffmpeg")
	v.SetDefault("codec.probe_timeout", 10*time.Second)
	v.SetDefault("codec.ffmpeg_log_dir", "")
	v.SetDefault("codec.ffmpeg_log_max_size", 100)
	v.SetDefault("codec.ffmpeg_log_max_backups", 10)
	v.SetDefault("codec.ffmpeg_log_max_age", 30)
	v.SetDefault("codec.ffmpeg_log_compress", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")

	v.SetDefault("service.name", "rtsp4k")
	v.SetDefault("service.display_name", "rtsp4k relay")
	v.SetDefault("service.description", "Relays video sources into RTSP streams")
}

func newConf() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(ConfName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("http.port", "PORT")
	return v
}

// LoadConf reads file, or rtsp4k.{ini,yaml,json,toml} from the working
// directory when file is empty. A missing default file is not an error.
func LoadConf(file string) (*viper.Viper, error) {
	v := newConf()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	confLock.Lock()
	conf = v
	confLock.Unlock()
	return v, nil
}

// Conf returns the loaded configuration, or defaults plus environment
// when LoadConf has not been called.
func Conf() *viper.Viper {
	confLock.RLock()
	v := conf
	confLock.RUnlock()
	if v != nil {
		return v
	}

	confLock.Lock()
	defer confLock.Unlock()
	if conf == nil {
		conf = newConf()
	}
	return conf
}

// WatchConf calls onChange whenever the loaded config file is rewritten.
// It is a no-op when no file was read.
func WatchConf(onChange func(v *viper.Viper)) bool {
	v := Conf()
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(in fsnotify.Event) {
		if in.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(v)
	})
	v.WatchConfig()
	return true
}
