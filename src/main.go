package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/overtone-synth/src/audio"
	"golang.org/x/sync/errgroup"
)

const reportsPerSecond = 30

var errDisconnected = errors.New("client disconnected")

func main() {
	config := audio.DefaultConfig()
	sockFileName := flag.String("sock", "/tmp/overtone-synth.sock", "unix socket for commands and reports")
	flag.IntVar(&config.SampleRate, "sample-rate", config.SampleRate, "output sample rate in Hz")
	flag.IntVar(&config.BlockSize, "block", config.BlockSize, "frames rendered per block")
	flag.IntVar(&config.Channels, "channels", config.Channels, "output channels (1 or 2)")
	flag.StringVar(&config.PresetDir, "presets", "", "preset directory containing _list.json")
	flag.StringVar(&config.Preset, "preset", "", "preset applied at startup")
	useMidi := flag.Bool("midi", true, "listen to MIDI IN")
	midiPort := flag.String("midi-port", "", "MIDI IN port name (first port if empty)")
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	audio, err := audio.NewAudio(config)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer audio.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err = withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return audio.Start(ctx)
		})
		g.Go(func() error {
			return receiveCommands(ctx, conn, audio.CommandCh)
		})
		g.Go(func() error {
			// unblocks receiveCommands
			<-ctx.Done()
			return conn.SetReadDeadline(time.Now())
		})
		g.Go(func() error {
			return sendReports(ctx, conn, audio)
		})
		if *useMidi {
			g.Go(func() error {
				return receiveMidi(ctx, *midiPort, audio)
			})
		}
		return g.Wait()
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errDisconnected) {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	log.Printf("start listening %s...\n", sockFileName)
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			return errDisconnected
		}
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		line = []byte{}
		if err != nil {
			log.Printf("[WARN] %v\n", err)
			continue
		}
		if len(command) == 0 {
			continue
		}
		commandCh <- command
		log.Printf("received: %s\n", strings.Join(command, " "))
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Fields(line)
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func receiveMidi(ctx context.Context, portName string, a *audio.Audio) error {
	for data := range audio.ListenToMidiIn(ctx, portName) {
		a.AddMidiEvent(data)
	}
	log.Println("receiveMidi() ended.")
	return nil
}

func sendReports(ctx context.Context, conn net.Conn, audio *audio.Audio) error {
	t := time.NewTicker(time.Second / reportsPerSecond)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if _, err := conn.Write([]byte(audio.Report() + "\n")); err != nil {
				return err
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
