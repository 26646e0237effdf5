// Package scene defines the immutable input of a render pass: a background,
// an ordered list of layers with candidate images, and the selection of one
// candidate per layer.
//
// Scenes are plain value data. Renderers read them and never mutate them, so
// a single *Scene may be shared by concurrent passes.
//
// # JSON Format
//
//	{
//	  "background": {"url": "https://cdn.example.com/room.jpg"},
//	  "layers": [
//	    {
//	      "id": "sofa",
//	      "name": "Sofa",
//	      "z": 1,
//	      "transform": {"x": 10, "y": 40, "width": 50, "height": 40},
//	      "images": [
//	        {"id": "red", "url": "https://cdn.example.com/sofa-red.png"},
//	        {"id": "blue", "url": "https://cdn.example.com/sofa-blue.png",
//	         "transform": {"x": 12, "y": 42, "width": 46, "height": 36, "rotation": 5}}
//	      ]
//	    }
//	  ],
//	  "selection": {"sofa": "blue"}
//	}
//
// Layers are visible unless "visible": false is given. A layer without a
// selection entry renders its first candidate.
package scene
