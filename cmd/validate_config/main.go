package main

import (
	"fmt"
	"os"

	"meters-poller/internal/config"
	"meters-poller/internal/mqtt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_config <config-file>")
		os.Exit(1)
	}

	configPath := os.Args[1]
	fmt.Printf("📄 Loading config from: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Config loaded successfully!\n")
	fmt.Printf("   MQTT Broker: %s:%d (base topic '%s', style %s)\n",
		cfg.MQTT.Host, cfg.MQTT.Port, cfg.MQTT.BaseTopic, cfg.MQTT.TopicStyle)
	fmt.Printf("   Serial: %s\n", cfg.LinkConfig())
	fmt.Printf("   Polling: %s mode, period %.1fs\n", cfg.Polling.ReadMode, cfg.Polling.PeriodS)

	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.TopicStyle, cfg.HomeAssistant.DiscoveryPrefix)

	invalid := 0
	fmt.Printf("   Devices: %d\n", len(cfg.Devices))
	for _, d := range cfg.Devices {
		family, err := d.Validate()
		if err != nil {
			invalid++
			fmt.Printf("     - id=%d: ❌ %v\n", d.ID, err)
			continue
		}
		fmt.Printf("     - id=%d:\n", d.ID)
		fmt.Printf("         Name: %s\n", d.DisplayName())
		fmt.Printf("         Type: %s (%s %s)\n", family.Type, family.Manufacturer, family.Model)
		fmt.Printf("         Link: %s %s\n", d.ProtocolOrDefault(), cfg.Opener(d).Endpoint())
		fmt.Printf("         State topic: %s\n", topics.State(mqtt.TopicKey(d.DisplayName(), d.ID)))
	}

	if invalid > 0 {
		fmt.Printf("\n⚠️ %d device(s) will be skipped at poll time\n", invalid)
		os.Exit(1)
	}
	fmt.Println("\n✅ Configuration is valid!")
}
