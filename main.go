package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/MeloQi/EasyGoLib/utils"
	"github.com/MeloQi/service"
	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"
	"github.com/kr/pretty"
	"github.com/spf13/viper"

	"github.com/yusiwen/rtsp4k/log"
	"github.com/yusiwen/rtsp4k/media"
	"github.com/yusiwen/rtsp4k/metrics"
	"github.com/yusiwen/rtsp4k/models"
	"github.com/yusiwen/rtsp4k/relay"
	"github.com/yusiwen/rtsp4k/routers"
	config "github.com/yusiwen/rtsp4k/utils"
)

var (
	gitCommitCode string
	buildDateTime string
)

var cli struct {
	Config  string `help:"Configure file path." short:"c" type:"path"`
	Command string `arg:"" optional:"" default:"run" enum:"run,install,uninstall,start,stop" help:"Service command (${enum})."`
}

type program struct {
	conf        *viper.Viper
	httpPort    int
	httpServer  *http.Server
	registry    *relay.Registry
	stopRecover context.CancelFunc
}

func (p *program) StopHTTP() (err error) {
	if p.httpServer == nil {
		err = fmt.Errorf("HTTP Server Not Found")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = p.httpServer.Shutdown(ctx); err != nil {
		return
	}
	return
}

func (p *program) StartHTTP() (err error) {
	p.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", p.httpPort),
		Handler:           routers.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	link := fmt.Sprintf("http://%s:%d", utils.LocalIP(), p.httpPort)
	log.Info("http server start --> ", link)
	go func() {
		if err := p.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("start http server error: ", err)
		}
		log.Info("http server end")
	}()
	return
}

func (p *program) newRegistry() (*relay.Registry, *metrics.Metrics, error) {
	conf := p.conf
	dataDir := conf.GetString("streams.data_dir")
	if err := utils.EnsureDir(dataDir); err != nil {
		return nil, nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	store, err := models.OpenStore(conf.GetString("streams.config_path"))
	if err != nil {
		return nil, nil, err
	}

	ffmpegConf := media.FFmpegConfig{
		Binary:        conf.GetString("codec.ffmpeg_binary"),
		ProbeTimeout:  conf.GetDuration("codec.probe_timeout"),
		LogDir:        conf.GetString("codec.ffmpeg_log_dir"),
		LogMaxSize:    conf.GetInt("codec.ffmpeg_log_max_size"),
		LogMaxBackups: conf.GetInt("codec.ffmpeg_log_max_backups"),
		LogMaxAge:     conf.GetInt("codec.ffmpeg_log_max_age"),
		LogCompress:   conf.GetBool("codec.ffmpeg_log_compress"),
	}
	if !config.CommandExists(ffmpegConf.Binary) {
		log.Warn("ffmpeg binary not found: ", ffmpegConf.Binary)
	}
	publishers, err := media.NewPublisherOpener(conf.GetString("encoder.backend"), ffmpegConf)
	if err != nil {
		return nil, nil, err
	}
	encoding := media.EncodingOptions{
		BitrateKbps:      conf.GetInt("encoder.bitrate_kbps"),
		SpeedPreset:      conf.GetString("encoder.speed_preset"),
		KeyframeInterval: conf.GetInt("encoder.keyframe_interval"),
		Profile:          conf.GetString("encoder.profile"),
	}
	if err := encoding.Validate(); err != nil {
		return nil, nil, fmt.Errorf("encoder config: %w", err)
	}

	m := metrics.New()
	registry := relay.NewRegistry(relay.Config{
		Server:  config.GetFullAddress(conf.GetString("rtsp.server")),
		DataDir: dataDir,
		Limit: relay.Limit{
			Width:  conf.GetInt("encoder.max_width"),
			Height: conf.GetInt("encoder.max_height"),
		},
		Encoding:   encoding,
		DefaultFPS: conf.GetInt("encoder.default_fps"),
		MaxRelays:  conf.GetInt("streams.max_relays"),
		Console:    os.Stdout,
		Metrics:    m,
	}, store, &media.FFmpegSourceOpener{Config: ffmpegConf}, publishers)
	log.Info("stream config --> ", store.Path())
	return registry, m, nil
}

func (p *program) Start(s service.Service) (err error) {
	log.Info("********** START **********")
	if utils.IsPortInUse(p.httpPort) {
		err = fmt.Errorf("HTTP port[%d] In Use", p.httpPort)
		return
	}
	registry, m, err := p.newRegistry()
	if err != nil {
		return
	}
	p.registry = registry

	err = routers.Init(&routers.APIHandler{
		Registry:     registry,
		DataDir:      p.conf.GetString("streams.data_dir"),
		Metrics:      m,
		LiveInterval: p.conf.GetDuration("http.live_interval"),
	})
	if err != nil {
		return
	}
	p.StartHTTP()
	log.Info("relaying to --> rtsp://", config.PublicRTSPAddress(p.conf.GetString("rtsp.server")))

	ctx, cancel := context.WithCancel(context.Background())
	p.stopRecover = cancel
	go func() {
		if failed := registry.Recover(ctx); len(failed) > 0 {
			log.Warnf("%d persisted streams could not be started: %v", len(failed), failed)
		}
	}()
	return
}

func (p *program) Stop(s service.Service) (err error) {
	defer log.Info("********** STOP **********")
	defer log.CloseLogWriter()
	if p.stopRecover != nil {
		p.stopRecover()
	}
	p.StopHTTP()
	if p.registry != nil {
		if err := p.registry.Close(); err != nil {
			log.Warn("stop relays: ", err)
		}
	}
	return
}

func applyLogConf(conf *viper.Viper) {
	if err := log.SetLevel(conf.GetString("log.level")); err != nil {
		log.Warn("invalid log level: ", err)
	}
	if dir := conf.GetString("log.dir"); dir != "" {
		if err := log.UseLogDir(dir, "rtsp4k.log"); err != nil {
			log.Warn("log dir: ", err)
		} else {
			log.Debug("log files --> ", dir)
		}
	}
}

func main() {
	kong.Parse(&cli,
		kong.Name("rtsp4k"),
		kong.Description("Relay video files, devices and network streams to RTSP."),
	)

	conf, err := config.LoadConf(cli.Config)
	if err != nil {
		log.Error(err)
		utils.PauseExit()
	}
	applyLogConf(conf)
	if config.WatchConf(func(v *viper.Viper) {
		if err := log.SetLevel(v.GetString("log.level")); err == nil {
			log.Info("log level --> ", log.GetLevel())
		}
	}) {
		log.Info("config file --> ", conf.ConfigFileUsed())
	}
	log.Debugf("current configuration:\n%# v", pretty.Formatter(conf.AllSettings()))

	log.Info("git commit code: ", gitCommitCode)
	log.Info("build date: ", buildDateTime)
	routers.BuildVersion = fmt.Sprintf("%s.%s", routers.BuildVersion, gitCommitCode)
	routers.BuildDateTime = buildDateTime

	svcConfig := &service.Config{
		Name:        conf.GetString("service.name"),
		DisplayName: conf.GetString("service.display_name"),
		Description: conf.GetString("service.description"),
	}
	p := &program{
		conf:     conf,
		httpPort: conf.GetInt("http.port"),
	}
	s, err := service.New(p, svcConfig)
	if err != nil {
		log.Error(err)
		utils.PauseExit()
	}
	if cli.Command != "run" {
		figure.NewFigure("rtsp4k", "", false).Print()
		log.Info(svcConfig.Name, " ", cli.Command, "...")
		if err = service.Control(s, cli.Command); err != nil {
			log.Error(err)
			utils.PauseExit()
		}
		log.Info(svcConfig.Name, " ", cli.Command, " ok")
		return
	}
	figure.NewFigure("rtsp4k", "", false).Print()
	if err = s.Run(); err != nil {
		log.Error(err)
		utils.PauseExit()
	}
}
