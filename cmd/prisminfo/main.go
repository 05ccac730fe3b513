package main

import (
	"encoding/json"
	"fmt"

	"github.com/devblok/prism/gfx/vkr"
)

func main() {
	instance, err := vkr.NewInstance("prisminfo", nil, nil)
	if err != nil {
		panic(err)
	}

	if bytes, err := json.Marshal(instance.DeviceInfo()); err == nil {
		fmt.Printf("%s", bytes)
	} else {
		panic(err)
	}

	instance.Release()
}
