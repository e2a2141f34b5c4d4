package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockable maps resource_blocking names, singular or plural, to CDP
// resource types. Documents and scripts are absent: the page listener
// needs both.
var blockable = map[string]proto.NetworkResourceType{
	"image":       proto.NetworkResourceTypeImage,
	"images":      proto.NetworkResourceTypeImage,
	"font":        proto.NetworkResourceTypeFont,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheet":  proto.NetworkResourceTypeStylesheet,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blockList is the set of resource types a tab refuses to load.
type blockList map[proto.NetworkResourceType]bool

func newBlockList(names []string) (blockList, error) {
	bl := make(blockList, len(names))
	for _, name := range names {
		t, ok := blockable[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("browser: resource type %q cannot be blocked", name)
		}
		bl[t] = true
	}
	return bl, nil
}

func (bl blockList) blocks(t proto.NetworkResourceType) bool {
	return bl[t]
}

// blockResources fails the page's requests for the listed types and lets
// everything else through. It returns nil when nothing is blocked.
func blockResources(page *rod.Page, bl blockList) (*rod.HijackRouter, error) {
	if len(bl) == 0 {
		return nil, nil
	}
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if bl.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("browser: hijack requests: %w", err)
	}
	go router.Run()
	return router, nil
}
