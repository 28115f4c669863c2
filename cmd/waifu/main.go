// Command waifu drives an AI character inside a running Godot scene from the
// terminal.
//
// It connects to the engine over the configured backend, builds a Gemini
// collaborator from ~/.api-gemini, and runs a small interactive loop:
//
//	you type text        -> character replies via the LLM
//	anim <name> [blend]  -> plays an animation on the VRM node
//	expr <name> <value>  -> sets a blend-shape weight
//	anims / shapes       -> queries the engine-reported lists
//	stats                -> shows session statistics
//	quit                 -> disconnects and exits
//
// Configuration comes from WAIFU_* environment variables (a local .env file
// is honored) with flag overrides.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/waifuai/waifu-llm-vrm/character"
	"github.com/waifuai/waifu-llm-vrm/connector"
	"github.com/waifuai/waifu-llm-vrm/internal/config"
	"github.com/waifuai/waifu-llm-vrm/internal/wire"
	"github.com/waifuai/waifu-llm-vrm/llm"
	"github.com/waifuai/waifu-llm-vrm/llm/gemini"
	"github.com/waifuai/waifu-llm-vrm/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	name := flag.String("name", cfg.CharacterName, "character name")
	personality := flag.String("personality", cfg.Personality, "character personality")
	nodePath := flag.String("vrm", cfg.VRMNodePath, "VRM scene node path (enables VRM commands)")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (trace|debug|info|warn|error)")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	keyPath := cfg.APIKeyFile
	var apiKey string
	if keyPath != "" {
		apiKey, err = llm.LoadAPIKeyFrom(keyPath)
	} else {
		apiKey, err = llm.LoadAPIKey()
	}
	if err != nil {
		return err
	}

	ctx := context.Background()
	collaborator, err := gemini.New(ctx, gemini.Config{
		APIKey:       apiKey,
		Model:        cfg.Model,
		SystemPrompt: character.SystemPrompt(*name, *personality),
	})
	if err != nil {
		return err
	}

	conn, err := connector.New(cfg.ConnectorConfig())
	if err != nil {
		return err
	}

	conn.On(wire.EventSpeechDone, func(payload json.RawMessage) {
		logger.Infof("engine: speech finished")
	})
	conn.On(wire.EventError, func(payload json.RawMessage) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &body)
		logger.Errorf("engine: %s", body.Message)
	})

	if err := conn.Connect(ctx); err != nil {
		// Chat still works without the engine; actions will fail fast.
		fmt.Printf("Engine unavailable (%v); continuing chat-only.\n", err)
	}
	defer conn.Disconnect()

	sessionCfg := character.Config{
		Name:         *name,
		Personality:  *personality,
		HistoryLimit: cfg.HistoryLimit,
		LLM:          collaborator,
		Connector:    conn,
	}

	var session *character.Session
	var vrm *character.VRMSession
	if *nodePath != "" {
		vrm, err = character.NewVRM(sessionCfg, *nodePath)
		if err != nil {
			return err
		}
		session = vrm.Session
		fmt.Printf("VRM character %s bound to %s.\n", *name, *nodePath)
	} else {
		session, err = character.New(sessionCfg)
		if err != nil {
			return err
		}
		fmt.Printf("Character %s ready.\n", *name)
	}

	// In-scene text reaches the character the same way terminal input does.
	err = session.ListenPlayerInput(ctx, func(reply string, err error) {
		if err != nil {
			logger.Errorf("player input: %v", err)
			return
		}
		fmt.Printf("\n%s: %s\nYou: ", session.Name(), reply)
	})
	if err != nil {
		return err
	}

	fmt.Println("Type to chat; 'quit' to exit.")
	return loop(ctx, session, vrm)
}

func loop(ctx context.Context, session *character.Session, vrm *character.VRMSession) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			fmt.Println("Goodbye!")
			return nil

		case "stats":
			stats := session.Stats()
			fmt.Printf("%s: %d exchanges, %d stored turns\n",
				stats.Name, stats.Interactions, stats.HistoryLen)

		case "anim":
			if vrm == nil {
				fmt.Println("VRM mode is not enabled (set -vrm).")
				continue
			}
			if len(fields) < 2 {
				fmt.Println("usage: anim <name> [blendTime]")
				continue
			}
			blend := 0.0
			if len(fields) > 2 {
				parsed, err := strconv.ParseFloat(fields[2], 64)
				if err != nil {
					fmt.Printf("bad blend time: %v\n", err)
					continue
				}
				blend = parsed
			}
			reportActionErr(vrm.PlayAnimation(ctx, fields[1], blend))

		case "expr":
			if vrm == nil {
				fmt.Println("VRM mode is not enabled (set -vrm).")
				continue
			}
			if len(fields) != 3 {
				fmt.Println("usage: expr <name> <value>")
				continue
			}
			value, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				fmt.Printf("bad expression value: %v\n", err)
				continue
			}
			reportActionErr(vrm.SetExpression(ctx, fields[1], value))

		case "anims":
			if vrm == nil {
				fmt.Println("VRM mode is not enabled (set -vrm).")
				continue
			}
			names, err := vrm.AnimationList(ctx)
			if err != nil {
				reportActionErr(err)
				continue
			}
			fmt.Println(strings.Join(names, ", "))

		case "shapes":
			if vrm == nil {
				fmt.Println("VRM mode is not enabled (set -vrm).")
				continue
			}
			names, err := vrm.BlendshapeList(ctx)
			if err != nil {
				reportActionErr(err)
				continue
			}
			fmt.Println(strings.Join(names, ", "))

		default:
			reply, err := session.Talk(ctx, line)
			if err != nil {
				if errors.Is(err, llm.ErrProvider) {
					fmt.Printf("LLM error: %v\n", err)
					continue
				}
				return err
			}
			fmt.Printf("%s: %s\n", session.Name(), reply)
		}
	}
}

func reportActionErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, connector.ErrNotConnected):
		fmt.Println("Engine not connected.")
	default:
		fmt.Printf("Engine error: %v\n", err)
	}
}
