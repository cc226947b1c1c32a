// Package publish releases synthesized episodes to a podcast RSS feed.
//
// The feed lives under the configured feed directory together with a media/
// folder holding the audio enclosures. Feed updates are serialized with a file
// lock and written atomically. An episode GUID already present in the local
// feed, or in the live feed when check_existing_feed is enabled, is treated as
// published and returned without modification.
//
// Visibility:
//   - public: listed in the feed
//   - unlisted: listed with <itunes:block>Yes</itunes:block>
//   - private: audio staged under media/ but not listed
package publish
